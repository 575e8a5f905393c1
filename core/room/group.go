package room

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Group holds its own members plus named channels and sub-groups.
// Safe for concurrent use.
type Group struct {
	memberSet

	nodeMu   sync.RWMutex
	channels map[string]*Channel
	groups   map[string]*Group
}

// NewGroup creates a group holding the given members.
func NewGroup(name string, members ...Member) *Group {
	g := &Group{
		channels: make(map[string]*Channel),
		groups:   make(map[string]*Group),
	}
	g.init(name, members)
	return g
}

// Channel resolves path to a channel, creating missing nodes on the way.
// The segment before the first slash names a sub-group and the remainder is
// resolved inside it; a path without a slash names a channel of this group.
// Resolving the same path twice returns the same *Channel.
func (g *Group) Channel(path string) *Channel {
	head, rest, nested := strings.Cut(path, "/")
	if !nested {
		return g.channel(head)
	}
	return g.group(head).Channel(rest)
}

// Group resolves path to a sub-group, creating missing groups on the way.
func (g *Group) Group(path string) *Group {
	head, rest, nested := strings.Cut(path, "/")
	sub := g.group(head)
	if !nested {
		return sub
	}
	return sub.Group(rest)
}

// Lookup resolves path like Channel but never creates nodes. It reports
// false when any segment is missing.
func (g *Group) Lookup(path string) (*Channel, bool) {
	head, rest, nested := strings.Cut(path, "/")
	g.nodeMu.RLock()
	defer g.nodeMu.RUnlock()
	if !nested {
		ch, ok := g.channels[head]
		return ch, ok
	}
	sub, ok := g.groups[head]
	if !ok {
		return nil, false
	}
	return sub.Lookup(rest)
}

func (g *Group) channel(name string) *Channel {
	g.nodeMu.RLock()
	ch, ok := g.channels[name]
	g.nodeMu.RUnlock()
	if ok {
		return ch
	}

	g.nodeMu.Lock()
	defer g.nodeMu.Unlock()
	if ch, ok := g.channels[name]; ok {
		return ch
	}
	ch = NewChannel(name)
	g.channels[name] = ch
	return ch
}

func (g *Group) group(name string) *Group {
	g.nodeMu.RLock()
	sub, ok := g.groups[name]
	g.nodeMu.RUnlock()
	if ok {
		return sub
	}

	g.nodeMu.Lock()
	defer g.nodeMu.Unlock()
	if sub, ok := g.groups[name]; ok {
		return sub
	}
	sub = NewGroup(name)
	g.groups[name] = sub
	return sub
}

// Channels returns the names of the group's direct channels, sorted.
func (g *Group) Channels() []string {
	g.nodeMu.RLock()
	defer g.nodeMu.RUnlock()
	return slices.Sorted(maps.Keys(g.channels))
}

// Groups returns the names of the direct sub-groups, sorted.
func (g *Group) Groups() []string {
	g.nodeMu.RLock()
	defer g.nodeMu.RUnlock()
	return slices.Sorted(maps.Keys(g.groups))
}

// Filter returns a new group with the same name holding the direct members
// for which pred returns true. The new group references the same channel and
// sub-group nodes as the receiver.
func (g *Group) Filter(pred Predicate) *Group {
	out := NewGroup(g.name, g.selected(pred)...)

	g.nodeMu.RLock()
	maps.Copy(out.channels, g.channels)
	maps.Copy(out.groups, g.groups)
	g.nodeMu.RUnlock()
	return out
}

// LeaveAll removes m from the group, its channels and every nested group.
func (g *Group) LeaveAll(m Member) error {
	errs := []error{g.Leave(m)}

	g.nodeMu.RLock()
	channels := slices.Collect(maps.Values(g.channels))
	groups := slices.Collect(maps.Values(g.groups))
	g.nodeMu.RUnlock()

	for _, ch := range channels {
		errs = append(errs, ch.LeaveAll(m))
	}
	for _, sub := range groups {
		errs = append(errs, sub.LeaveAll(m))
	}
	return errors.Join(errs...)
}
