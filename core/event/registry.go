package event

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/wshub/core/logger"
	"github.com/dmitrymomot/wshub/pkg/async"
)

// Listener handles one occurrence of an event.
type Listener[P any] func(ctx context.Context, payload P) error

// ListenerID identifies a registered listener within its registry.
type ListenerID uint64

type entry[P any] struct {
	id    ListenerID
	fn    Listener[P]
	once  bool
	fired atomic.Bool
}

// claim reports whether the entry may run for the current dispatch.
// A once-entry can be claimed a single time across all goroutines.
func (e *entry[P]) claim() bool {
	if !e.once {
		return true
	}
	return e.fired.CompareAndSwap(false, true)
}

// Registry is a typed publish/subscribe primitive over a closed set of event kinds.
// Listeners of one kind are kept in registration order. Listeners are always
// invoked without internal locks held, so they may call back into the registry.
// Safe for concurrent use.
type Registry[K comparable, P any] struct {
	mu        sync.Mutex
	listeners map[K][]*entry[P]
	kinds     []K
	nextID    ListenerID

	logger       *slog.Logger
	errorHandler ErrorHandler
}

// NewRegistry creates a registry accepting exactly the given event kinds.
func NewRegistry[K comparable, P any](kinds []K, opts ...Option) *Registry[K, P] {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry[K, P]{
		listeners:    make(map[K][]*entry[P], len(kinds)),
		kinds:        slices.Clone(kinds),
		logger:       o.logger,
		errorHandler: o.errorHandler,
	}
	for _, k := range kinds {
		r.listeners[k] = nil
	}
	return r
}

// Kinds returns the event kinds the registry accepts.
func (r *Registry[K, P]) Kinds() []K {
	return slices.Clone(r.kinds)
}

// On registers a persistent listener for kind.
func (r *Registry[K, P]) On(kind K, fn Listener[P]) (ListenerID, error) {
	return r.add(kind, fn, false)
}

// Once registers a listener that is removed right after its first invocation.
func (r *Registry[K, P]) Once(kind K, fn Listener[P]) (ListenerID, error) {
	return r.add(kind, fn, true)
}

// Subscribe registers fn for kind on r, narrowing the payload to T.
// Payloads of any other concrete type are skipped.
func Subscribe[T any, K comparable, P any](r *Registry[K, P], kind K, fn func(context.Context, T) error) (ListenerID, error) {
	if fn == nil {
		return 0, ErrNilListener
	}
	return r.On(kind, func(ctx context.Context, payload P) error {
		typed, ok := any(payload).(T)
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	})
}

func (r *Registry[K, P]) add(kind K, fn Listener[P], once bool) (ListenerID, error) {
	if fn == nil {
		return 0, ErrNilListener
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.listeners[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrUnknownEvent, kind)
	}

	r.nextID++
	r.listeners[kind] = append(list, &entry[P]{id: r.nextID, fn: fn, once: once})
	return r.nextID, nil
}

// Off removes every listener of the given kinds, or of all kinds when none are given.
func (r *Registry[K, P]) Off(kinds ...K) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(kinds) == 0 {
		for k := range r.listeners {
			r.listeners[k] = nil
		}
		return
	}

	for _, k := range kinds {
		if _, ok := r.listeners[k]; ok {
			r.listeners[k] = nil
		}
	}
}

// OffListener removes a single listener. The zero value of K is rejected
// with ErrMissingEvent since a listener cannot be removed without its kind.
func (r *Registry[K, P]) OffListener(kind K, id ListenerID) error {
	var zero K
	if kind == zero {
		return ErrMissingEvent
	}

	r.mu.Lock()
	_, known := r.listeners[kind]
	r.mu.Unlock()
	if !known {
		return fmt.Errorf("%w: %v", ErrUnknownEvent, kind)
	}

	if !r.remove(kind, id) {
		return ErrListenerNotFound
	}
	return nil
}

// ListenerCount returns the number of listeners currently registered for kind.
func (r *Registry[K, P]) ListenerCount(kind K) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners[kind])
}

func (r *Registry[K, P]) remove(kind K, id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.listeners[kind]
	idx := slices.IndexFunc(list, func(e *entry[P]) bool { return e.id == id })
	if idx < 0 {
		return false
	}
	// Clone-on-write keeps snapshots held by in-flight dispatches intact
	r.listeners[kind] = slices.Delete(slices.Clone(list), idx, idx+1)
	return true
}

func (r *Registry[K, P]) snapshot(kind K) ([]*entry[P], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.listeners[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownEvent, kind)
	}
	return list, nil
}

// Emit invokes the listeners of kind one after another in registration order,
// each completing before the next starts. Every listener runs even when an
// earlier one fails; failures and recovered panics are joined into the result.
// Listeners added during dispatch first fire on the next Emit.
func (r *Registry[K, P]) Emit(ctx context.Context, kind K, payload P) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	list, err := r.snapshot(kind)
	if err != nil {
		return err
	}

	var errs []error
	for _, e := range list {
		if !e.claim() {
			continue
		}
		if e.once {
			r.remove(kind, e.id)
		}
		if err := safeCall(ctx, e, payload); err != nil {
			errs = append(errs, fmt.Errorf("listener %d for %v: %w", e.id, kind, err))
		}
	}

	return errors.Join(errs...)
}

// Fire dispatches kind without waiting. Listeners are claimed up front and
// then invoked in registration order on a single background goroutine, so a
// slow listener delays the ones after it but never the caller. Each failure
// goes to the registry's error handler.
func (r *Registry[K, P]) Fire(ctx context.Context, kind K, payload P) error {
	list, err := r.snapshot(kind)
	if err != nil {
		return err
	}

	claimed := make([]*entry[P], 0, len(list))
	for _, e := range list {
		if !e.claim() {
			continue
		}
		if e.once {
			r.remove(kind, e.id)
		}
		claimed = append(claimed, e)
	}
	if len(claimed) == 0 {
		return nil
	}

	go func() {
		for _, e := range claimed {
			if err := safeCall(ctx, e, payload); err != nil {
				r.fail(ctx, kind, fmt.Errorf("listener %d for %v: %w", e.id, kind, err))
			}
		}
	}()
	return nil
}

// Queue runs Emit in the background. Any failure is reported to the
// registry's error handler; the returned future may be awaited or ignored.
func (r *Registry[K, P]) Queue(ctx context.Context, kind K, payload P) *async.ExecFuture {
	return async.Exec(ctx, payload, func(ctx context.Context, p P) error {
		err := r.Emit(ctx, kind, p)
		if err != nil {
			r.fail(ctx, kind, err)
		}
		return err
	})
}

// Pull blocks until the next occurrence of kind and returns its payload.
// A positive timeout bounds the wait and yields ErrTimeout when it elapses.
// Whichever of event, timeout or ctx wins, the other waiters are retracted
// before Pull returns, so ListenerCount(kind) is unchanged by the call.
func (r *Registry[K, P]) Pull(ctx context.Context, kind K, timeout time.Duration) (P, error) {
	var zero P

	got := make(chan P, 1)
	id, err := r.Once(kind, func(_ context.Context, p P) error {
		got <- p
		return nil
	})
	if err != nil {
		return zero, err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case p := <-got:
		return p, nil
	case <-expired:
		r.remove(kind, id)
		return zero, fmt.Errorf("%w: %v after %s", ErrTimeout, kind, timeout)
	case <-ctx.Done():
		r.remove(kind, id)
		return zero, ctx.Err()
	}
}

// PullAsync is Pull in future form.
func (r *Registry[K, P]) PullAsync(ctx context.Context, kind K, timeout time.Duration) *async.Future[P] {
	return async.Async(ctx, kind, func(ctx context.Context, k K) (P, error) {
		return r.Pull(ctx, k, timeout)
	})
}

func (r *Registry[K, P]) fail(ctx context.Context, kind K, err error) {
	if r.errorHandler != nil {
		r.errorHandler(ctx, fmt.Sprint(kind), err)
		return
	}
	r.logger.ErrorContext(ctx, "event listener failed",
		logger.Event(fmt.Sprint(kind)),
		logger.Error(err))
}

func safeCall[P any](ctx context.Context, e *entry[P], payload P) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrListenerPanic, rec)
		}
	}()
	return e.fn(ctx, payload)
}
