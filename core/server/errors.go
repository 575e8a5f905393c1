package server

import "errors"

var (
	// ErrMissingAddress is returned when the server address is not provided.
	ErrMissingAddress = errors.New("server address is required")

	// ErrServerAlreadyRunning is returned by Serve when the server is already serving.
	ErrServerAlreadyRunning = errors.New("server is already running")

	// ErrListen wraps failures to bind the listen address.
	ErrListen = errors.New("failed to listen")

	// ErrShutdown wraps graceful shutdown failures.
	ErrShutdown = errors.New("server shutdown error")

	// ErrFailedLoadCert is returned when a certificate or key cannot be loaded.
	ErrFailedLoadCert = errors.New("failed to load certificate")

	// ErrEmptyCertPath is returned when only one of certificate and key is given to NewTLSConfig.
	ErrEmptyCertPath = errors.New("certificate or key file path cannot be empty")
)
