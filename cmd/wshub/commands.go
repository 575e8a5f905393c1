package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrymomot/wshub/core/hub"
)

// command is the demo wire protocol:
//
//	{"action":"join","channel":"rooms/red"}
//	{"action":"send","channel":"rooms/red","data":{"text":"hi"}}
//	{"action":"leave","channel":"rooms/red"}
type command struct {
	Action  string          `json:"action"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type reply struct {
	Action  string          `json:"action"`
	Channel string          `json:"channel,omitempty"`
	From    int             `json:"from,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

var errUnknownAction = errors.New("unknown action")

// handleMessage applies one command from ev.Conn. Protocol errors are sent
// back to the client and not returned.
func handleMessage(h *hub.Hub) func(context.Context, hub.MessageEvent) error {
	return func(_ context.Context, ev hub.MessageEvent) error {
		var cmd command
		if err := json.Unmarshal(ev.Data, &cmd); err != nil {
			return ev.Conn.Send(reply{Action: "error", Error: "malformed command"})
		}
		if cmd.Channel == "" {
			return ev.Conn.Send(reply{Action: "error", Error: "channel is required"})
		}

		ch := h.Channel(cmd.Channel)
		switch cmd.Action {
		case "join":
			ch.Join(ev.Conn)
			return ev.Conn.Send(reply{Action: "joined", Channel: cmd.Channel})
		case "leave":
			if err := ch.Leave(ev.Conn); err != nil {
				return err
			}
			return ev.Conn.Send(reply{Action: "left", Channel: cmd.Channel})
		case "send":
			if !ch.Has(ev.Conn) {
				return ev.Conn.Send(reply{Action: "error", Channel: cmd.Channel, Error: "not a member"})
			}
			return ch.Send(reply{Action: "message", Channel: cmd.Channel, From: ev.Conn.ID(), Data: cmd.Data})
		default:
			return ev.Conn.Send(reply{
				Action: "error",
				Error:  fmt.Errorf("%w: %q", errUnknownAction, cmd.Action).Error(),
			})
		}
	}
}
