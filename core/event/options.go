package event

import (
	"context"
	"log/slog"
)

// ErrorHandler receives listener failures that have no caller to return to,
// such as those from Fire and Queue.
type ErrorHandler func(ctx context.Context, kind string, err error)

type options struct {
	logger       *slog.Logger
	errorHandler ErrorHandler
}

// Option configures a Registry.
type Option func(*options)

// WithLogger sets the logger used for unobserved listener failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithErrorHandler replaces the default fallback sink, which logs at error level.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		o.errorHandler = h
	}
}
