// Package runner defines the action runner contract consumed by the queue
// and a reference implementation of it.
//
// A runner wraps a single asynchronous unit of work and exposes its
// lifecycle as an observable Status:
//
//	Initial -> Pending -> Success
//	                   -> Error -> Pending (retry)
//	Pending -> Initial (cancel)
//	Initial <-> Disabled
//
// Execute and Retry block until the unit of work settles. Callers that want
// concurrency run them on their own goroutines, which is what the queue does.
package runner

import (
	"context"

	"github.com/roach88/hex/internal/observable"
)

// Action is a unit of work executed by a runner.
type Action[T any] func(ctx context.Context) (T, error)

// Runner is the contract the queue relies on. The queue treats a runner as
// opaque apart from its status channel and these control operations.
type Runner[T any] interface {
	// Status exposes the runner's current status.
	Status() observable.Readable[Status]

	// Execute runs action. Only valid while Initial.
	Execute(ctx context.Context, action Action[T]) (T, error)

	// Cancel requests cancellation. Only meaningful while Pending.
	Cancel()

	// Retry re-runs the last action. Only valid while Error.
	Retry(ctx context.Context) (T, error)

	// Dispose releases runner resources and detaches status subscribers.
	Dispose()
}
