package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/wshub/core/event"
	"github.com/dmitrymomot/wshub/core/logger"
)

// Socket is the transport a Conn drives. *websocket.Conn satisfies it.
// ReadMessage is only called from the read pump and WriteMessage only from
// the write pump; WriteControl and Close may be called concurrently.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

var _ Socket = (*websocket.Conn)(nil)

// State is the readiness of a connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type frame struct {
	messageType int
	data        []byte
}

// Conn is a handle over one live websocket. It owns a read pump that turns
// inbound frames into events and a write pump that serializes outbound frames
// and keepalive pings. Safe for concurrent use.
type Conn struct {
	id         int
	uuid       string
	remoteAddr string
	socket     Socket
	events     *event.Registry[EventKind, Event]
	logger     *slog.Logger

	state   atomic.Int32
	running atomic.Bool
	send    chan frame
	done    chan struct{}

	stopOnce   sync.Once
	closeOnce  sync.Once
	localClose atomic.Pointer[CloseEvent]

	sendBuffer     int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64
	filter         MessageFilter
}

// New wraps socket in a Conn with the given registry-local id.
// The connection starts in StateConnecting; call Run to start serving it.
func New(socket Socket, id int, opts ...Option) *Conn {
	c := &Conn{
		id:             id,
		uuid:           uuid.NewString(),
		socket:         socket,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		done:           make(chan struct{}),
		sendBuffer:     DefaultSendBufferSize,
		writeWait:      DefaultWriteWait,
		pongWait:       DefaultPongWait,
		pingPeriod:     DefaultPingPeriod,
		maxMessageSize: DefaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.send = make(chan frame, c.sendBuffer)
	c.logger = c.logger.With(logger.ConnID(c.id), logger.ConnUUID(c.uuid))
	c.events = event.NewRegistry[EventKind, Event](Kinds, event.WithLogger(c.logger))
	return c
}

// ID returns the registry-local id.
func (c *Conn) ID() int { return c.id }

// UUID returns the globally unique id.
func (c *Conn) UUID() string { return c.uuid }

// RemoteAddr returns the peer address if one was recorded.
func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// ReadyState returns the current state.
func (c *Conn) ReadyState() State { return State(c.state.Load()) }

func (c *Conn) String() string {
	return fmt.Sprintf("conn#%d(%s)", c.id, c.uuid)
}

// Send queues data for delivery. See Encode for how payloads map to frames.
// Frames queued before Run starts are written once the connection opens.
func (c *Conn) Send(data any) error {
	if c.ReadyState() >= StateClosing {
		return ErrClosed
	}

	messageType, payload, err := Encode(data)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- frame{messageType: messageType, data: payload}:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// Close closes the connection with code and reason and emits the close event
// immediately with exactly those values and WasClean set. A zero code sends
// a normal-closure frame but is still reported as zero. Only the first Close,
// or the transport failing first, produces a close event.
func (c *Conn) Close(code int, reason string) error {
	if c.ReadyState() >= StateClosing {
		return nil
	}

	frameCode := code
	if frameCode == 0 {
		frameCode = websocket.CloseNormalClosure
	}

	ev := CloseEvent{
		Code:     code,
		Reason:   reason,
		WasClean: true,
		Time:     time.Now(),
	}

	err := c.stop(func() {
		c.localClose.Store(&ev)
		msg := websocket.FormatCloseMessage(frameCode, reason)
		if werr := c.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait)); werr != nil {
			c.logger.Debug("close frame not delivered", logger.Error(werr))
		}
	})

	c.emitClose(context.Background(), ev)
	return err
}

// Run serves the connection until the socket fails, the peer closes or ctx is
// canceled, in which case the connection is closed with 1001 going away.
// It emits open first and close last, and blocks until both pumps exit.
func (c *Conn) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		return ErrClosed
	}

	c.socket.SetReadLimit(c.maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(c.pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	if err := c.events.Emit(ctx, EventOpen, OpenEvent{Time: time.Now()}); err != nil {
		c.logger.ErrorContext(ctx, "open listener failed", logger.Error(err))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump(ctx)
	}()

	stopWatch := context.AfterFunc(ctx, func() {
		_ = c.Close(websocket.CloseGoingAway, "server shutting down")
	})
	defer stopWatch()

	closeEvent := c.readPump(ctx)

	if err := c.stop(nil); err != nil {
		c.logger.DebugContext(ctx, "socket close failed", logger.Error(err))
	}
	wg.Wait()

	// A local Close owns the reported code and reason
	if local := c.localClose.Load(); local != nil {
		closeEvent = *local
	}
	c.emitClose(context.WithoutCancel(ctx), closeEvent)
	return nil
}

func (c *Conn) readPump(ctx context.Context) CloseEvent {
	for {
		messageType, data, err := c.socket.ReadMessage()
		if err != nil {
			return c.closeEventFor(ctx, err)
		}

		msg := MessageEvent{Type: messageType, Data: data, Time: time.Now()}
		if c.filter != nil && !c.filter(ctx, c, msg) {
			continue
		}

		if err := c.events.Emit(ctx, EventMessage, msg); err != nil {
			c.logger.ErrorContext(ctx, "message listener failed", logger.Error(err))
		}
	}
}

func (c *Conn) closeEventFor(ctx context.Context, err error) CloseEvent {
	ev := CloseEvent{Code: websocket.CloseAbnormalClosure, Time: time.Now()}
	unexpected := true

	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		ev.Code = ce.Code
		ev.Reason = ce.Text
		ev.WasClean = ce.Code != websocket.CloseAbnormalClosure
		unexpected = websocket.IsUnexpectedCloseError(ce,
			websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
	}

	// Faults after a local close are expected and not reported
	if unexpected && c.ReadyState() < StateClosing {
		c.emitError(ctx, err)
	}
	return ev
}

func (c *Conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case f := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.socket.WriteMessage(f.messageType, f.data); err != nil {
				c.fail(ctx, fmt.Errorf("write: %w", err))
				return
			}
		case <-ticker.C:
			if err := c.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				c.fail(ctx, fmt.Errorf("ping: %w", err))
				return
			}
		case <-c.done:
			return
		}
	}
}

// fail reports a write-side fault and tears the socket down so the read pump exits.
func (c *Conn) fail(ctx context.Context, err error) {
	if c.ReadyState() >= StateClosing {
		return
	}
	c.emitError(ctx, err)
	_ = c.stop(nil)
}

func (c *Conn) emitError(ctx context.Context, err error) {
	c.logger.DebugContext(ctx, "connection fault", logger.Error(err))
	if lerr := c.events.Emit(context.WithoutCancel(ctx), EventError, ErrorEvent{Err: err, Time: time.Now()}); lerr != nil {
		c.logger.ErrorContext(ctx, "error listener failed", logger.Error(lerr))
	}
}

// stop moves the connection to closing, runs before (if any) while the
// socket is still usable, then releases the pumps and closes the socket.
// Only the first call does anything.
func (c *Conn) stop(before func()) error {
	var err error
	c.stopOnce.Do(func() {
		c.state.Store(int32(StateClosing))
		if before != nil {
			before()
		}
		close(c.done)
		err = c.socket.Close()
	})
	return err
}

func (c *Conn) emitClose(ctx context.Context, ev CloseEvent) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		c.logger.DebugContext(ctx, "connection closed",
			logger.CloseCode(ev.Code),
			logger.Reason(ev.Reason))
		if err := c.events.Emit(ctx, EventClose, ev); err != nil {
			c.logger.ErrorContext(ctx, "close listener failed", logger.Error(err))
		}
	})
}
