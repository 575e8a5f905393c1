package room

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Channel is a named set of members with lazily created sub-channels.
// Safe for concurrent use.
type Channel struct {
	memberSet

	childMu  sync.RWMutex
	children map[string]*Channel
}

// NewChannel creates a channel holding the given members.
func NewChannel(name string, members ...Member) *Channel {
	c := &Channel{children: make(map[string]*Channel)}
	c.init(name, members)
	return c
}

// Channel returns the sub-channel at path, creating every missing level.
// Slashes descend through nested sub-channels. The same path always yields
// the same *Channel.
func (c *Channel) Channel(path string) *Channel {
	head, rest, nested := strings.Cut(path, "/")
	child := c.child(head)
	if !nested {
		return child
	}
	return child.Channel(rest)
}

// Lookup returns the existing sub-channel at path without creating it.
func (c *Channel) Lookup(path string) (*Channel, bool) {
	head, rest, nested := strings.Cut(path, "/")
	c.childMu.RLock()
	child, ok := c.children[head]
	c.childMu.RUnlock()
	if !ok || !nested {
		return child, ok
	}
	return child.Lookup(rest)
}

func (c *Channel) child(name string) *Channel {
	c.childMu.RLock()
	ch, ok := c.children[name]
	c.childMu.RUnlock()
	if ok {
		return ch
	}

	c.childMu.Lock()
	defer c.childMu.Unlock()
	if ch, ok := c.children[name]; ok {
		return ch
	}
	ch = NewChannel(name)
	c.children[name] = ch
	return ch
}

// Channels returns the names of the direct sub-channels, sorted.
func (c *Channel) Channels() []string {
	c.childMu.RLock()
	defer c.childMu.RUnlock()
	return slices.Sorted(maps.Keys(c.children))
}

// Filter returns a new channel with the same name holding the members for
// which pred returns true. The receiver is not modified and sub-channels
// are not carried over.
func (c *Channel) Filter(pred Predicate) *Channel {
	return NewChannel(c.name, c.selected(pred)...)
}

// LeaveAll removes m from this channel and every sub-channel.
func (c *Channel) LeaveAll(m Member) error {
	errs := []error{c.Leave(m)}

	c.childMu.RLock()
	children := slices.Collect(maps.Values(c.children))
	c.childMu.RUnlock()

	for _, ch := range children {
		errs = append(errs, ch.LeaveAll(m))
	}
	return errors.Join(errs...)
}
