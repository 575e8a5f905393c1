package hub

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/wshub/core/conn"
	"github.com/dmitrymomot/wshub/core/logger"
)

const (
	wrongPathBody  = "The client has not specified the correct path that the server is listening on."
	notUpgradeBody = "not trying to upgrade as websocket."
)

// ServeHTTP upgrades requests for Config.Path and registers the resulting
// connection. An empty Config.Path accepts every path. Rejected requests
// never reach the connection table.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Path != "" && r.URL.Path != h.cfg.Path {
		h.reject(w, r, http.StatusNotAcceptable, wrongPathBody)
		return
	}
	if !websocket.IsWebSocketUpgrade(r) {
		h.reject(w, r, http.StatusUpgradeRequired, notUpgradeBody)
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		h.metrics.incr(metricRejected, 1)
		h.logger.DebugContext(r.Context(), "upgrade failed",
			logger.Error(err),
			logger.ClientIP(r.RemoteAddr))
		return
	}

	h.accept(socket, r.RemoteAddr)
}

func (h *Hub) reject(w http.ResponseWriter, r *http.Request, status int, body string) {
	h.metrics.incr(metricRejected, 1)
	h.logger.DebugContext(r.Context(), "request rejected",
		logger.Path(r.URL.Path),
		logger.StatusCode(status),
		logger.ClientIP(r.RemoteAddr))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// accept registers socket under a fresh id and starts serving it.
func (h *Hub) accept(socket *websocket.Conn, remoteAddr string) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		deadline := time.Now().Add(time.Second)
		_ = socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		_ = socket.Close()
		return
	}

	id := h.nextID()
	opts := append(h.cfg.connOptions(),
		conn.WithLogger(h.logger),
		conn.WithRemoteAddr(remoteAddr))
	if h.limiter != nil {
		opts = append(opts, conn.WithMessageFilter(h.allowMessage))
	}
	opts = append(opts, h.connOpts...)

	c := conn.New(socket, id, opts...)
	if err := h.wire(c); err != nil {
		h.mu.Unlock()
		h.logger.Error("connection wiring failed", logger.ConnID(id), logger.Error(err))
		_ = socket.Close()
		return
	}
	h.conns[id] = c
	h.wg.Add(1)
	ctx := h.baseCtx
	h.mu.Unlock()

	h.metrics.incr(metricAccepted, 1)

	go func() {
		defer h.wg.Done()
		if err := c.Run(ctx); err != nil {
			h.logger.Error("connection run failed", logger.ConnID(id), logger.Error(err))
		}
	}()
}

// nextID advances the running counter to the next id not in use.
// Callers hold h.mu.
func (h *Hub) nextID() int {
	for {
		h.lastID++
		if h.lastID < firstID || h.lastID >= math.MaxInt32 {
			h.lastID = firstID
		}
		if _, taken := h.conns[h.lastID]; !taken {
			return h.lastID
		}
	}
}

// wire re-emits the connection's lifecycle as hub events.
func (h *Hub) wire(c *conn.Conn) error {
	_, openErr := c.OnOpen(func(ctx context.Context, ev conn.OpenEvent) error {
		h.metrics.incr(metricConnections, 1)
		h.logger.DebugContext(ctx, "client connected",
			logger.ConnID(c.ID()),
			logger.Addr(c.RemoteAddr()))
		return h.events.Emit(ctx, EventConnect, ConnectEvent{Conn: c, Time: ev.Time})
	})

	_, messageErr := c.OnMessage(func(ctx context.Context, ev conn.MessageEvent) error {
		h.metrics.incr(metricReceived, 1)
		h.metrics.mark(metricRate, 1)
		return h.events.Emit(ctx, EventMessage, MessageEvent{
			Conn: c,
			Time: ev.Time,
			Type: ev.Type,
			Data: ev.Data,
		})
	})

	_, closeErr := c.OnClose(func(ctx context.Context, ev conn.CloseEvent) error {
		h.remove(ctx, c)
		h.metrics.decr(metricConnections, 1)
		h.logger.DebugContext(ctx, "client disconnected",
			logger.ConnID(c.ID()),
			logger.CloseCode(ev.Code),
			logger.Reason(ev.Reason))
		return h.events.Emit(ctx, EventDisconnect, DisconnectEvent{
			Conn:   c,
			Time:   ev.Time,
			Code:   ev.Code,
			Reason: ev.Reason,
		})
	})

	return errors.Join(openErr, messageErr, closeErr)
}

// remove drops c from the table and, when configured, from the namespace.
func (h *Hub) remove(ctx context.Context, c *conn.Conn) {
	h.mu.Lock()
	if cur, ok := h.conns[c.ID()]; ok && cur == c {
		delete(h.conns, c.ID())
	}
	h.mu.Unlock()

	if h.cfg.AutoLeave {
		if err := h.root.LeaveAll(c); err != nil {
			h.logger.ErrorContext(ctx, "empty listener failed", logger.ConnID(c.ID()), logger.Error(err))
		}
	}
	if h.limiter != nil {
		if err := h.limiter.Reset(ctx, c.UUID()); err != nil {
			h.logger.WarnContext(ctx, "rate limit reset failed", logger.ConnID(c.ID()), logger.Error(err))
		}
	}
}

// allowMessage applies the per-connection rate limit. Limiter errors let the
// message through.
func (h *Hub) allowMessage(ctx context.Context, c *conn.Conn, _ conn.MessageEvent) bool {
	res, err := h.limiter.Allow(ctx, c.UUID())
	if err != nil {
		h.logger.WarnContext(ctx, "rate limiter failed", logger.ConnID(c.ID()), logger.Error(err))
		return true
	}
	if !res.Allowed() {
		h.metrics.incr(metricDropped, 1)
		h.logger.DebugContext(ctx, "message dropped by rate limit",
			logger.ConnID(c.ID()),
			logger.Duration(res.RetryAfter()))
		return false
	}
	return true
}
