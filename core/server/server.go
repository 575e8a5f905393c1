package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/wshub/core/logger"
)

// Server wraps http.Server with explicit listening, TLS selection and
// graceful shutdown. Safe for concurrent use.
type Server struct {
	mu                sync.RWMutex
	addr              string
	server            *http.Server
	listener          net.Listener
	logger            *slog.Logger
	shutdown          time.Duration
	readHeaderTimeout time.Duration
	idleTimeout       time.Duration
	maxHeaderBytes    int
	tlsConfig         *tls.Config
	running           bool
}

// New creates a Server for addr. Defaults to a 30-second graceful shutdown
// timeout and a no-op logger.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:              addr,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		shutdown:          DefaultShutdownTimeout,
		readHeaderTimeout: DefaultReadHeaderTimeout,
		idleTimeout:       DefaultIdleTimeout,
		maxHeaderBytes:    DefaultMaxHeaderBytes,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TLS reports whether the server terminates TLS.
func (s *Server) TLS() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tlsConfig != nil
}

// Addr returns the bound address while listening, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Running reports whether Serve is active.
func (s *Server) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrListen, s.addr, err)
	}
	return ln, nil
}

// Serve accepts connections on ln until Stop is called or the listener fails.
// It blocks and returns nil after a graceful Stop.
func (s *Server) Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	serve, err := s.Bind(ctx, ln, handler)
	if err != nil {
		return err
	}
	return serve()
}

// Bind registers ln and handler as the running server and returns the
// blocking accept loop. From the moment Bind returns, Stop shuts the server
// down and closes ln even if the loop has not started yet, in which case the
// loop returns nil immediately.
func (s *Server) Bind(ctx context.Context, ln net.Listener, handler http.Handler) (func() error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, ErrServerAlreadyRunning
	}
	s.running = true
	s.listener = ln
	s.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: s.readHeaderTimeout,
		IdleTimeout:       s.idleTimeout,
		MaxHeaderBytes:    s.maxHeaderBytes,
		TLSConfig:         s.tlsConfig,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	srv := s.server
	hasTLS := s.tlsConfig != nil

	return func() error {
		s.logger.InfoContext(ctx, "starting server", logger.Addr(ln.Addr().String()), slog.Bool("tls", hasTLS))

		var err error
		if hasTLS {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}

		s.mu.Lock()
		if s.server == srv {
			s.running = false
			s.listener = nil
		}
		s.mu.Unlock()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, nil
}

// Start listens on the configured address and serves until ctx is canceled
// or an error occurs. Returns ctx.Err() when the context is canceled; use
// Stop for graceful shutdown.
func (s *Server) Start(ctx context.Context, handler http.Handler) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ctx, ln, handler)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop gracefully shuts the server down using the configured timeout.
// Hijacked connections such as websockets are not tracked and must be
// closed by their owner. Returns immediately if the server is not running.
func (s *Server) Stop() error {
	s.mu.RLock()
	srv, ln, running := s.server, s.listener, s.running
	timeout := s.shutdown
	s.mu.RUnlock()

	if !running || srv == nil {
		return nil
	}

	s.logger.Info("shutting down server gracefully", logger.Duration(timeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	// The accept loop may not have taken ownership of ln yet.
	if ln != nil {
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			s.logger.Debug("listener close", logger.Error(cerr))
		}
	}

	s.mu.Lock()
	if s.server == srv {
		s.running = false
		s.listener = nil
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("server shutdown error", logger.Error(err))
		return fmt.Errorf("%w: %w", ErrShutdown, err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Run provides errgroup compatibility. The returned function serves until
// ctx is canceled and then stops the server gracefully.
func (s *Server) Run(ctx context.Context, handler http.Handler) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx, handler)
		}()

		select {
		case <-ctx.Done():
			if stopErr := s.Stop(); stopErr != nil {
				s.logger.Error("failed to stop server during context cancellation", logger.Error(stopErr))
			}
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}
