package hub

import "errors"

var (
	// ErrClosed is returned by Serve after Close.
	ErrClosed = errors.New("hub is closed")

	// ErrInvalidConfig wraps configuration that cannot produce a working hub.
	ErrInvalidConfig = errors.New("invalid hub configuration")
)
