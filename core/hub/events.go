package hub

import (
	"context"
	"time"

	"github.com/dmitrymomot/wshub/core/conn"
	"github.com/dmitrymomot/wshub/core/event"
)

// EventKind names a hub event.
type EventKind string

const (
	EventConnect    EventKind = "connect"
	EventMessage    EventKind = "message"
	EventDisconnect EventKind = "disconnect"
)

// Kinds lists every hub event kind.
var Kinds = []EventKind{EventConnect, EventMessage, EventDisconnect}

// Event is the closed set of payloads a hub emits.
type Event interface {
	Kind() EventKind
	isHubEvent()
}

// ConnectEvent is emitted when an accepted connection starts serving.
type ConnectEvent struct {
	Conn *conn.Conn
	Time time.Time
}

// MessageEvent carries one inbound frame from Conn.
type MessageEvent struct {
	Conn *conn.Conn
	Time time.Time
	Type int
	Data []byte
}

// Text returns the frame payload as a string.
func (e MessageEvent) Text() string { return string(e.Data) }

// DisconnectEvent is emitted after Conn has left the registry.
type DisconnectEvent struct {
	Conn   *conn.Conn
	Time   time.Time
	Code   int
	Reason string
}

func (ConnectEvent) Kind() EventKind    { return EventConnect }
func (MessageEvent) Kind() EventKind    { return EventMessage }
func (DisconnectEvent) Kind() EventKind { return EventDisconnect }

func (ConnectEvent) isHubEvent()    {}
func (MessageEvent) isHubEvent()    {}
func (DisconnectEvent) isHubEvent() {}

// Events returns the hub's event registry for Emit, Pull and Off.
func (h *Hub) Events() *event.Registry[EventKind, Event] {
	return h.events
}

// OnConnect registers fn for connect events.
func (h *Hub) OnConnect(fn func(context.Context, ConnectEvent) error) (event.ListenerID, error) {
	return event.Subscribe(h.events, EventConnect, fn)
}

// OnMessage registers fn for message events.
func (h *Hub) OnMessage(fn func(context.Context, MessageEvent) error) (event.ListenerID, error) {
	return event.Subscribe(h.events, EventMessage, fn)
}

// OnDisconnect registers fn for disconnect events.
func (h *Hub) OnDisconnect(fn func(context.Context, DisconnectEvent) error) (event.ListenerID, error) {
	return event.Subscribe(h.events, EventDisconnect, fn)
}
