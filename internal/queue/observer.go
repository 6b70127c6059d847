package queue

import (
	"github.com/roach88/hex/internal/runner"
)

// TransitionKind distinguishes bucket mutations.
type TransitionKind string

const (
	// KindEnqueue seeds a newly enqueued index into its first bucket.
	KindEnqueue TransitionKind = "enqueue"
	// KindMove moves an index from one bucket to another.
	KindMove TransitionKind = "move"
	// KindReset empties every bucket (Empty, Clear).
	KindReset TransitionKind = "reset"
)

// Transition is one applied bucket mutation.
//
// For KindEnqueue, From is meaningless and To is the seeded bucket. For
// KindReset, Index is -1 and both statuses are meaningless.
type Transition struct {
	// Seq orders transitions within one queue. It is stamped under the
	// bucket lock, so folding transitions in seq order rebuilds membership.
	Seq int64

	Kind TransitionKind

	// Index is the runner's stable queue index.
	Index int

	From runner.Status
	To   runner.Status
}

// Observer receives every applied transition. It is called synchronously on
// the goroutine that triggered the mutation, after the bucket lock is
// released, so it may read the queue. Calls from different goroutines may
// arrive out of seq order.
type Observer interface {
	OnTransition(t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(t Transition)

// OnTransition calls f.
func (f ObserverFunc) OnTransition(t Transition) {
	f(t)
}

// NoOpObserver discards transitions.
type NoOpObserver struct{}

func (NoOpObserver) OnTransition(Transition) {}
