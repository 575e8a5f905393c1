package hub

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/dmitrymomot/wshub/core/conn"
	"github.com/dmitrymomot/wshub/pkg/ratelimiter"
)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger for the hub and every connection it accepts.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithListener makes Serve use ln instead of binding Config.Addr.
// The listener is consumed by the first Serve.
func WithListener(ln net.Listener) Option {
	return func(h *Hub) {
		h.listener = ln
	}
}

// WithCheckOrigin replaces the origin check derived from Config.AllowedOrigins.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// WithSubprotocols sets the subprotocols offered during upgrade.
func WithSubprotocols(protocols ...string) Option {
	return func(h *Hub) {
		h.upgrader.Subprotocols = protocols
	}
}

// WithCompression enables permessage-deflate negotiation.
func WithCompression() Option {
	return func(h *Hub) {
		h.upgrader.EnableCompression = true
	}
}

// WithRateLimitStore backs the per-connection rate limiter with store.
func WithRateLimitStore(store ratelimiter.Store) Option {
	return func(h *Hub) {
		if store != nil {
			h.limitStore = store
		}
	}
}

// WithConnOptions appends options applied to every accepted connection.
func WithConnOptions(opts ...conn.Option) Option {
	return func(h *Hub) {
		h.connOpts = append(h.connOpts, opts...)
	}
}
