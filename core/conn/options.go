package conn

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultWriteWait bounds a single frame write.
	DefaultWriteWait = 10 * time.Second

	// DefaultPongWait is how long the peer may stay silent before the connection is dropped.
	DefaultPongWait = 60 * time.Second

	// DefaultPingPeriod must stay below DefaultPongWait.
	DefaultPingPeriod = (DefaultPongWait * 9) / 10

	// DefaultMaxMessageSize limits inbound frames.
	DefaultMaxMessageSize = 1 << 20 // 1 MB

	// DefaultSendBufferSize is the number of outbound frames queued per connection.
	DefaultSendBufferSize = 256
)

// MessageFilter decides whether an inbound message is emitted.
// Returning false drops the message silently.
type MessageFilter func(ctx context.Context, c *Conn, msg MessageEvent) bool

// Option configures a Conn.
type Option func(*Conn)

// WithUUID overrides the generated UUID.
func WithUUID(id string) Option {
	return func(c *Conn) {
		if id != "" {
			c.uuid = id
		}
	}
}

// WithLogger sets the logger for transport and listener failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRemoteAddr records the peer address for logging.
func WithRemoteAddr(addr string) Option {
	return func(c *Conn) {
		c.remoteAddr = addr
	}
}

// WithSendBufferSize sets the outbound queue length.
func WithSendBufferSize(n int) Option {
	return func(c *Conn) {
		if n > 0 {
			c.sendBuffer = n
		}
	}
}

// WithWriteWait sets the per-frame write deadline.
func WithWriteWait(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.writeWait = d
		}
	}
}

// WithPongWait sets the read deadline that each pong extends.
func WithPongWait(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.pongWait = d
		}
	}
}

// WithPingPeriod sets the keepalive ping interval.
func WithPingPeriod(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.pingPeriod = d
		}
	}
}

// WithMaxMessageSize limits inbound frame size.
func WithMaxMessageSize(n int64) Option {
	return func(c *Conn) {
		if n > 0 {
			c.maxMessageSize = n
		}
	}
}

// WithMessageFilter installs a filter consulted before each message event.
func WithMessageFilter(f MessageFilter) Option {
	return func(c *Conn) {
		c.filter = f
	}
}
