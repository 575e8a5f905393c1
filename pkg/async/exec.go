package async

import (
	"context"
	"time"
)

// ExecFuture is a future for computations that only report an error.
type ExecFuture struct {
	f *Future[struct{}]
}

// Await waits for the function to complete and returns its error.
func (e *ExecFuture) Await() error {
	_, err := e.f.Await()
	return err
}

// AwaitWithTimeout waits at most timeout for completion.
// Returns ErrTimeout if the function is still running.
func (e *ExecFuture) AwaitWithTimeout(timeout time.Duration) error {
	_, err := e.f.AwaitWithTimeout(timeout)
	return err
}

// Done returns a channel that is closed when the function completes.
func (e *ExecFuture) Done() <-chan struct{} {
	return e.f.Done()
}

// IsComplete reports whether the function has completed without blocking.
func (e *ExecFuture) IsComplete() bool {
	return e.f.IsComplete()
}

// Exec runs fn asynchronously and returns a future for its error.
func Exec[T any](ctx context.Context, param T, fn func(context.Context, T) error) *ExecFuture {
	return &ExecFuture{
		f: Async(ctx, param, func(ctx context.Context, p T) (struct{}, error) {
			return struct{}{}, fn(ctx, p)
		}),
	}
}
