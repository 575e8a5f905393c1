package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dmitrymomot/wshub/core/hub"
	"github.com/dmitrymomot/wshub/core/logger"
)

// maxPublishBody caps POST /channels bodies.
const maxPublishBody = 1 << 20

type healthCheck func(ctx context.Context) error

type connInfo struct {
	ID         int    `json:"id"`
	UUID       string `json:"uuid"`
	RemoteAddr string `json:"remote_addr"`
	State      string `json:"state"`
}

type channelInfo struct {
	Path     string   `json:"path"`
	Members  []int    `json:"members"`
	Channels []string `json:"channels"`
}

// newAdminRouter serves health, metrics and channel publishing on a
// separate listener from the websocket hub.
func newAdminRouter(h *hub.Hub, log *slog.Logger, checks ...healthCheck) *mux.Router {
	r := mux.NewRouter()

	r.Methods(http.MethodGet).Path("/health/live").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ALIVE")
	})

	r.Methods(http.MethodGet).Path("/health/ready").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !h.Listening() {
			writeText(w, http.StatusServiceUnavailable, "NOT READY")
			return
		}
		for _, check := range checks {
			if err := check(req.Context()); err != nil {
				log.WarnContext(req.Context(), "readiness check failed", logger.Error(err))
				writeText(w, http.StatusServiceUnavailable, "NOT READY")
				return
			}
		}
		writeText(w, http.StatusOK, "READY")
	})

	r.Methods(http.MethodGet).Path("/metrics").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		h.WriteMetrics(w)
	})

	r.Methods(http.MethodGet).Path("/stats").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.Stats())
	})

	r.Methods(http.MethodGet).Path("/conns").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conns := h.Conns()
		out := make([]connInfo, 0, len(conns))
		for _, c := range conns {
			out = append(out, connInfo{
				ID:         c.ID(),
				UUID:       c.UUID(),
				RemoteAddr: c.RemoteAddr(),
				State:      c.ReadyState().String(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Methods(http.MethodGet).Path("/channels/{path:.+}").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path := mux.Vars(req)["path"]
		ch, ok := h.Lookup(path)
		if !ok {
			writeText(w, http.StatusNotFound, "Channel not found.")
			return
		}
		info := channelInfo{Path: path, Members: []int{}, Channels: ch.Channels()}
		for _, m := range ch.Members() {
			info.Members = append(info.Members, m.ID())
		}
		writeJSON(w, http.StatusOK, info)
	})

	// Publishing mirrors a client "send" without requiring membership.
	r.Methods(http.MethodPost).Path("/channels/{path:.+}").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path := mux.Vars(req)["path"]
		body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxPublishBody))
		if err != nil {
			writeText(w, http.StatusBadRequest, "Unable to read POST body.")
			return
		}
		if err := h.Channel(path).Send(string(body)); err != nil {
			log.WarnContext(req.Context(), "publish partially failed", logger.Channel(path), logger.Error(err))
		}
		writeText(w, http.StatusOK, "OK")
	})

	return r
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
