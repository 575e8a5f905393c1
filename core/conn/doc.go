// Package conn wraps a single websocket in a Conn: a handle with a hub-local
// integer id, a UUID, a readiness state machine and its own event registry.
//
// Run drives the socket. A read pump turns frames into message events and a
// write pump drains the send queue and pings the peer. The events are:
//
//	open     OpenEvent     Run started serving
//	message  MessageEvent  one inbound frame
//	error    ErrorEvent    transport fault, always followed by close
//	close    CloseEvent    emitted exactly once per connection
//
// Send accepts []byte (binary frame), JSON object or array text (sent as-is)
// or any value encoding/json can marshal:
//
//	c.OnMessage(func(ctx context.Context, msg conn.MessageEvent) error {
//		return c.Send(map[string]string{"echo": msg.Text()})
//	})
//
// Close(code, reason) emits the close event immediately with the given values
// and WasClean set, regardless of whether the peer acknowledges the handshake.
package conn
