package event

import "errors"

var (
	// ErrUnknownEvent is returned when an operation names an event kind the registry was not declared with.
	ErrUnknownEvent = errors.New("unknown event kind")

	// ErrMissingEvent is returned by OffListener when no event kind is given.
	ErrMissingEvent = errors.New("event kind is required to remove a listener")

	// ErrNilListener is returned when registering a nil listener.
	ErrNilListener = errors.New("listener cannot be nil")

	// ErrListenerNotFound is returned by OffListener when the listener is not registered.
	ErrListenerNotFound = errors.New("listener not found")

	// ErrListenerPanic wraps a panic recovered from a listener.
	ErrListenerPanic = errors.New("listener panicked")

	// ErrTimeout is returned by Pull when the deadline elapses before the event occurs.
	ErrTimeout = errors.New("timed out waiting for event")
)
