package conn

import (
	"context"
	"time"

	"github.com/dmitrymomot/wshub/core/event"
)

// EventKind names a connection event.
type EventKind string

const (
	EventOpen    EventKind = "open"
	EventMessage EventKind = "message"
	EventClose   EventKind = "close"
	EventError   EventKind = "error"
)

// Kinds lists every connection event kind.
var Kinds = []EventKind{EventOpen, EventMessage, EventClose, EventError}

// Event is the closed set of payloads a connection emits.
type Event interface {
	Kind() EventKind
	isConnEvent()
}

// OpenEvent is emitted once the connection starts serving.
type OpenEvent struct {
	Time time.Time
}

// MessageEvent carries one inbound frame. Type is the websocket message type
// (websocket.TextMessage or websocket.BinaryMessage).
type MessageEvent struct {
	Type int
	Data []byte
	Time time.Time
}

// Text returns the frame payload as a string.
func (e MessageEvent) Text() string { return string(e.Data) }

// CloseEvent is emitted exactly once when the connection ends.
// WasClean reports whether the close handshake completed.
type CloseEvent struct {
	Code     int
	Reason   string
	WasClean bool
	Time     time.Time
}

// ErrorEvent reports a transport fault. A CloseEvent always follows.
type ErrorEvent struct {
	Err  error
	Time time.Time
}

func (OpenEvent) Kind() EventKind    { return EventOpen }
func (MessageEvent) Kind() EventKind { return EventMessage }
func (CloseEvent) Kind() EventKind   { return EventClose }
func (ErrorEvent) Kind() EventKind   { return EventError }

func (OpenEvent) isConnEvent()    {}
func (MessageEvent) isConnEvent() {}
func (CloseEvent) isConnEvent()   {}
func (ErrorEvent) isConnEvent()   {}

// Events exposes the connection's registry for Pull, Off and raw listeners.
func (c *Conn) Events() *event.Registry[EventKind, Event] {
	return c.events
}

// OnOpen registers fn for the open event.
func (c *Conn) OnOpen(fn func(context.Context, OpenEvent) error) (event.ListenerID, error) {
	return event.Subscribe(c.events, EventOpen, fn)
}

// OnMessage registers fn for inbound messages.
func (c *Conn) OnMessage(fn func(context.Context, MessageEvent) error) (event.ListenerID, error) {
	return event.Subscribe(c.events, EventMessage, fn)
}

// OnClose registers fn for the close event.
func (c *Conn) OnClose(fn func(context.Context, CloseEvent) error) (event.ListenerID, error) {
	return event.Subscribe(c.events, EventClose, fn)
}

// OnError registers fn for transport faults.
func (c *Conn) OnError(fn func(context.Context, ErrorEvent) error) (event.ListenerID, error) {
	return event.Subscribe(c.events, EventError, fn)
}
