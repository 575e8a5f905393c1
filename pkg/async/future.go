package async

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Future represents the result of an asynchronous computation.
type Future[T any] struct {
	val  T
	err  error
	once sync.Once
	done chan struct{}
}

// NewFuture returns an unresolved future together with the function that
// resolves it. Only the first call to resolve has any effect.
func NewFuture[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.resolve
}

func (f *Future[T]) resolve(val T, err error) {
	f.once.Do(func() {
		f.val, f.err = val, err
		close(f.done)
	})
}

// Await blocks until the future is resolved and returns its result.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.val, f.err
}

// AwaitWithTimeout waits at most timeout for the result.
// Returns ErrTimeout when the future is still pending after the timeout.
func (f *Future[T]) AwaitWithTimeout(timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.val, f.err
	case <-timer.C:
		var zero T
		return zero, ErrTimeout
	}
}

// AwaitContext waits for the result or for ctx to be done, whichever comes first.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel that is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsComplete reports whether the future is resolved without blocking.
func (f *Future[T]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Async runs fn in its own goroutine and returns a future for its result.
// A panic inside fn resolves the future with an error wrapping ErrPanic.
func Async[T, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f, resolve := NewFuture[U]()

	go func() {
		var zero U

		// Early exit prevents running work for an already canceled caller
		if err := ctx.Err(); err != nil {
			resolve(zero, err)
			return
		}

		defer func() {
			if r := recover(); r != nil {
				resolve(zero, fmt.Errorf("%w: %v", ErrPanic, r))
			}
		}()

		resolve(fn(ctx, param))
	}()

	return f
}
