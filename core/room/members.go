package room

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/wshub/core/event"
)

// Member is anything that can be addressed by a room. *conn.Conn implements it.
// Members are held by reference, so the dynamic type must be comparable
// (a pointer in practice). Distinct members may share an ID.
type Member interface {
	ID() int
	Send(data any) error
}

// EventKind names a room event.
type EventKind string

// EventEmpty fires when the last member leaves.
const EventEmpty EventKind = "empty"

// EmptyEvent is emitted once per transition from at least one member to none.
type EmptyEvent struct {
	Name string
	Time time.Time
}

// Predicate selects members for LeaveFunc and Filter.
type Predicate func(Member) bool

// memberSet is the membership core shared by Channel and Group.
type memberSet struct {
	name    string
	mu      sync.RWMutex
	members map[Member]struct{}
	events  *event.Registry[EventKind, EmptyEvent]
}

func (s *memberSet) init(name string, members []Member) {
	s.name = name
	s.members = make(map[Member]struct{}, len(members))
	s.events = event.NewRegistry[EventKind, EmptyEvent]([]EventKind{EventEmpty})
	for _, m := range members {
		if m != nil {
			s.members[m] = struct{}{}
		}
	}
}

// Name returns the node's name within its parent.
func (s *memberSet) Name() string { return s.name }

// Join adds members. Joining twice is a no-op; nil members are ignored.
func (s *memberSet) Join(members ...Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range members {
		if m != nil {
			s.members[m] = struct{}{}
		}
	}
}

// Leave removes members. If this empties the node, the empty event fires and
// any listener errors are returned.
func (s *memberSet) Leave(members ...Member) error {
	if len(members) == 0 {
		return nil
	}
	gone := make(map[Member]struct{}, len(members))
	for _, m := range members {
		if m != nil {
			gone[m] = struct{}{}
		}
	}
	return s.remove(func(m Member) bool {
		_, ok := gone[m]
		return ok
	})
}

// LeaveFunc removes every member for which pred returns true.
func (s *memberSet) LeaveFunc(pred Predicate) error {
	if pred == nil {
		return nil
	}
	return s.remove(pred)
}

func (s *memberSet) remove(match Predicate) error {
	s.mu.Lock()
	before := len(s.members)
	for m := range s.members {
		if match(m) {
			delete(s.members, m)
		}
	}
	emptied := before > 0 && len(s.members) == 0
	s.mu.Unlock()

	if !emptied {
		return nil
	}
	return s.events.Emit(context.Background(), EventEmpty, EmptyEvent{Name: s.name, Time: time.Now()})
}

// Len returns the number of members.
func (s *memberSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Has reports whether m is a member.
func (s *memberSet) Has(m Member) bool {
	if m == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[m]
	return ok
}

// Members returns a snapshot ordered by id.
func (s *memberSet) Members() []Member {
	s.mu.RLock()
	out := make([]Member, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Member) int { return a.ID() - b.ID() })
	return out
}

func (s *memberSet) selected(pred Predicate) []Member {
	all := s.Members()
	if pred == nil {
		return all
	}
	return slices.DeleteFunc(all, func(m Member) bool { return !pred(m) })
}

// Send delivers data to every member. Failures for individual members are
// joined; delivery to the others continues.
func (s *memberSet) Send(data any) error {
	var errs []error
	for _, m := range s.Members() {
		if err := m.Send(data); err != nil {
			errs = append(errs, fmt.Errorf("member %d: %w", m.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// OnEmpty registers fn for the empty event.
func (s *memberSet) OnEmpty(fn func(context.Context, EmptyEvent) error) (event.ListenerID, error) {
	if fn == nil {
		return 0, event.ErrNilListener
	}
	return s.events.On(EventEmpty, fn)
}

// Events exposes the node's registry.
func (s *memberSet) Events() *event.Registry[EventKind, EmptyEvent] {
	return s.events
}
