package conn

import "errors"

var (
	// ErrClosed is returned when sending on a connection that is closing or closed.
	ErrClosed = errors.New("connection is closed")

	// ErrSendBufferFull is returned when the outbound queue cannot take another frame.
	ErrSendBufferFull = errors.New("connection send buffer is full")

	// ErrSerialization is returned when a payload cannot be encoded as JSON text.
	ErrSerialization = errors.New("payload cannot be serialized")

	// ErrAlreadyRunning is returned when Run is called more than once.
	ErrAlreadyRunning = errors.New("connection is already running")
)
