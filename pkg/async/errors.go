package async

import "errors"

var (
	// ErrTimeout is returned when a future is not resolved within the requested duration.
	ErrTimeout = errors.New("async: operation timed out")

	// ErrPanic wraps a panic recovered from an asynchronous function.
	ErrPanic = errors.New("async: function panicked")
)
