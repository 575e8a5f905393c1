// Package event provides Registry, a typed publish/subscribe primitive used by
// every component of the hub: connections, channels, groups and the hub itself
// each own one registry over their own closed set of event kinds.
//
// # Basic Usage
//
//	type Kind string
//
//	const (
//		KindJoined Kind = "joined"
//		KindLeft   Kind = "left"
//	)
//
//	reg := event.NewRegistry[Kind, string]([]Kind{KindJoined, KindLeft},
//		event.WithLogger(log),
//	)
//
//	reg.On(KindJoined, func(ctx context.Context, name string) error {
//		log.Info("joined", "name", name)
//		return nil
//	})
//
//	// Ordered dispatch: listeners run one after another.
//	err := reg.Emit(ctx, KindJoined, "alice")
//
// # Dispatch Modes
//
// Emit runs listeners sequentially in registration order and returns their
// joined errors after all of them ran. Fire returns at once and invokes the
// listeners in registration order on one background goroutine. Queue runs Emit in the background and hands
// back an async.ExecFuture; failures go to the error handler configured with
// WithErrorHandler, or to the logger by default.
//
// # Waiting For An Event
//
// Pull registers a single-shot listener and blocks until the event occurs,
// the optional timeout elapses (ErrTimeout) or the context is done:
//
//	payload, err := reg.Pull(ctx, KindLeft, 5*time.Second)
//	if errors.Is(err, event.ErrTimeout) {
//		// nobody left in time
//	}
//
// The losing side of the race is retracted before Pull returns, so listener
// counts are the same before and after the call.
//
// # Removing Listeners
//
// Off() clears every listener, Off(kind) clears one kind and
// OffListener(kind, id) removes a single listener by the id returned from On
// or Once. A zero kind is rejected with ErrMissingEvent.
package event
