// Package room models broadcast targets as a tree of named nodes.
//
// A Channel is a set of members with sub-channels. A Group has its own
// members plus maps of channels and sub-groups. Both resolve slash-delimited
// paths lazily: every missing node is created on first access and the same
// path always returns the same node.
//
//	root := room.NewGroup("")
//	red := root.Channel("rooms/red") // group "rooms", channel "red"
//	red.Join(c1, c2)
//	err := red.Send(map[string]string{"msg": "hi"})
//
// Nodes emit "empty" once each time their membership drops from at least one
// member to none. Nodes are never removed automatically.
package room
