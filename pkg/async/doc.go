// Package async provides utilities for asynchronous programming with Go generics.
//
// This package implements a Future pattern for non-blocking operations with timeout support
// and coordination utilities for managing multiple asynchronous computations.
//
// # Core Types
//
// Future[U] represents the result of an asynchronous computation. It provides methods
// to wait for completion (Await), check status without blocking (IsComplete), and
// handle timeouts (AwaitWithTimeout).
//
// # Usage
//
// Basic asynchronous operation:
//
//	func fetchUser(ctx context.Context, userID int) (User, error) {
//		// Simulate database call
//		time.Sleep(100 * time.Millisecond)
//		return User{ID: userID, Name: "John"}, nil
//	}
//
//	// Execute asynchronously
//	future := async.Async(ctx, 123, fetchUser)
//
//	// Do other work...
//
//	// Wait for result
//	user, err := future.Await()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Using timeout:
//
//	user, err := future.AwaitWithTimeout(50 * time.Millisecond)
//	if errors.Is(err, async.ErrTimeout) {
//		log.Println("Operation timed out")
//	}
//
// # Error Handling
//
// The package defines two errors:
//   - ErrTimeout: returned when AwaitWithTimeout exceeds its duration
//   - ErrPanic: wraps a panic recovered from the asynchronous function
//
// ExecFuture is the error-only variant produced by Exec. The event registry
// uses it for queued dispatch, and NewFuture lets callers resolve a Future
// from their own goroutines.
//
// # Concurrency Safety
//
// All operations are safe for concurrent use. A Future is resolved exactly once.
//
// # Performance Considerations
//
// - Futures spawn exactly one goroutine per Async call
// - Context cancellation is checked before execution to prevent goroutine leaks
//
// # Context Support
//
// All asynchronous operations respect context cancellation. If a context is
// cancelled before the async function begins execution, it returns immediately
// with the context's error.
package async
