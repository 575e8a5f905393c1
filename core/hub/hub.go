package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/wshub/core/conn"
	"github.com/dmitrymomot/wshub/core/event"
	"github.com/dmitrymomot/wshub/core/logger"
	"github.com/dmitrymomot/wshub/core/room"
	"github.com/dmitrymomot/wshub/core/server"
	"github.com/dmitrymomot/wshub/pkg/ratelimiter"
)

// firstID is the lowest id handed to a connection.
const firstID = 2

// Hub accepts websocket upgrades, keeps the table of live connections and
// owns the root of the channel and group namespace. Each Hub is independent.
// Safe for concurrent use.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	server   *server.Server
	events   *event.Registry[EventKind, Event]
	root     *room.Group
	metrics  metrics
	connOpts []conn.Option

	limitStore ratelimiter.Store
	limiter    *ratelimiter.Bucket

	// connection table; also guards closed so no goroutine is added after Close
	mu     sync.Mutex
	conns  map[int]*conn.Conn
	lastID int
	closed bool
	wg     sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc

	// serve loop
	serveMu   sync.Mutex
	listener  net.Listener
	listening bool
	serveDone chan struct{}
	serveErr  error
}

// New builds a hub from cfg. TLS material is loaded here so a bad pair fails
// construction. With cfg.AutoServe the hub starts listening before returning.
func New(cfg Config, opts ...Option) (*Hub, error) {
	h := &Hub{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		root:   room.NewGroup(""),
		conns:  make(map[int]*conn.Conn),
		lastID: firstID - 1,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
		},
		metrics:    newMetrics(),
		limitStore: ratelimiter.NewMemoryStore(),
	}
	h.upgrader.CheckOrigin = h.checkOrigin

	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logger.Component("hub"))
	h.events = event.NewRegistry[EventKind, Event](Kinds, event.WithLogger(h.logger))
	h.baseCtx, h.cancel = context.WithCancel(context.Background())

	if cfg.rateLimit().Enabled() {
		limiter, err := ratelimiter.NewBucket(h.limitStore, cfg.rateLimit())
		if err != nil {
			return nil, fmt.Errorf("%w: rate limit: %w", ErrInvalidConfig, err)
		}
		h.limiter = limiter
	}

	srv, err := server.NewFromConfig(cfg.server(), server.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	h.server = srv

	if cfg.AutoServe {
		if err := h.Serve(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Config returns the configuration the hub was built with.
func (h *Hub) Config() Config {
	return h.cfg
}

// Serve starts listening in the background. It is a no-op while the hub is
// already listening and fails with ErrClosed after Close.
func (h *Hub) Serve() error {
	h.serveMu.Lock()
	defer h.serveMu.Unlock()

	if h.listening {
		return nil
	}
	if h.isClosed() {
		return ErrClosed
	}

	ln := h.listener
	h.listener = nil
	if ln == nil {
		var err error
		if ln, err = h.server.Listen(); err != nil {
			return err
		}
	}

	// Bind before starting the goroutine so a Close racing this call always
	// finds a running server to stop.
	serve, err := h.server.Bind(h.baseCtx, ln, h)
	if err != nil {
		_ = ln.Close()
		return err
	}

	done := make(chan struct{})
	h.serveDone = done
	h.serveErr = nil
	h.listening = true

	go func() {
		defer close(done)
		err := serve()

		h.serveMu.Lock()
		h.serveErr = err
		h.listening = false
		h.serveMu.Unlock()

		if err != nil {
			h.logger.Error("serve loop failed", logger.Error(err))
		}
	}()

	h.logger.Info("hub listening",
		logger.Addr(ln.Addr().String()),
		logger.Path(h.cfg.Path),
		slog.Bool("tls", h.server.TLS()))
	return nil
}

// Close stops the listener, closes every live connection with 1001 and waits
// for the serve loop and all connection goroutines to finish or ctx to expire.
// On a hub that never served and holds no connections Close does nothing and
// Serve may still be called. Otherwise the hub stays closed and calling Close
// again is a no-op.
func (h *Hub) Close(ctx context.Context) error {
	// serveMu first, same order as Serve, so no Serve can slip in between
	// marking the hub closed and stopping the server.
	h.serveMu.Lock()
	h.mu.Lock()
	if h.closed || (h.serveDone == nil && len(h.conns) == 0) {
		h.mu.Unlock()
		h.serveMu.Unlock()
		return nil
	}
	h.closed = true
	h.cancel()
	h.mu.Unlock()
	done := h.serveDone
	h.serveMu.Unlock()

	var errs []error
	if err := h.server.Stop(); err != nil {
		errs = append(errs, err)
	}

	finished := make(chan struct{})
	go func() {
		if done != nil {
			<-done
		}
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for connections: %w", ctx.Err()))
	}

	h.serveMu.Lock()
	if h.serveErr != nil {
		errs = append(errs, h.serveErr)
	}
	h.serveMu.Unlock()

	h.metrics.stop()
	h.logger.Info("hub closed")
	return errors.Join(errs...)
}

// Run provides errgroup compatibility. The returned function serves until ctx
// is canceled or the serve loop fails, then closes the hub within
// Config.ShutdownTimeout.
func (h *Hub) Run(ctx context.Context) func() error {
	return func() error {
		if err := h.Serve(); err != nil {
			return err
		}

		h.serveMu.Lock()
		done := h.serveDone
		h.serveMu.Unlock()

		select {
		case <-ctx.Done():
		case <-done:
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.shutdownTimeout())
		defer cancel()
		return h.Close(shutdownCtx)
	}
}

// Listening reports whether the serve loop is running.
func (h *Hub) Listening() bool {
	h.serveMu.Lock()
	defer h.serveMu.Unlock()
	return h.listening
}

// Closed reports whether Close has been called.
func (h *Hub) Closed() bool {
	return h.isClosed()
}

func (h *Hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// TLS reports whether the hub serves wss.
func (h *Hub) TLS() bool {
	return h.server.TLS()
}

// Addr returns the bound address while listening, otherwise the configured one.
func (h *Hub) Addr() string {
	return h.server.Addr()
}

// Address returns the client-facing URL, ws://host:port or wss://host:port.
func (h *Hub) Address() string {
	scheme := "ws"
	if h.TLS() {
		scheme = "wss"
	}
	return scheme + "://" + h.Addr()
}

// Channel resolves a slash-delimited path in the hub namespace, creating
// groups and the leaf channel on first use.
func (h *Hub) Channel(path string) *room.Channel {
	return h.root.Channel(path)
}

// Lookup returns the channel at path if it already exists.
func (h *Hub) Lookup(path string) (*room.Channel, bool) {
	return h.root.Lookup(path)
}

// Group resolves a slash-delimited path to a group, creating it on first use.
func (h *Hub) Group(path string) *room.Group {
	return h.root.Group(path)
}

// Root returns the top-level group that holds every channel and group.
func (h *Hub) Root() *room.Group {
	return h.root
}

// Conn returns the live connection with id.
func (h *Hub) Conn(id int) (*conn.Conn, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[id]
	return c, ok
}

// Conns returns the live connections ordered by id.
func (h *Hub) Conns() []*conn.Conn {
	h.mu.Lock()
	out := make([]*conn.Conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	h.mu.Unlock()

	slices.SortFunc(out, func(a, b *conn.Conn) int { return a.ID() - b.ID() })
	return out
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast sends data to every live connection and joins the failures.
func (h *Hub) Broadcast(data any) error {
	var errs []error
	for _, c := range h.Conns() {
		if err := c.Send(data); err != nil {
			errs = append(errs, fmt.Errorf("conn %d: %w", c.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// checkOrigin allows any origin when AllowedOrigins is empty, otherwise the
// Origin host must match an entry or an entry must be "*".
func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, u.Host) || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (h *Hub) shutdownTimeout() time.Duration {
	if h.cfg.ShutdownTimeout > 0 {
		return h.cfg.ShutdownTimeout
	}
	return server.DefaultShutdownTimeout
}
