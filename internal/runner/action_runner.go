package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/hex/internal/observable"
)

// ErrCancelled is returned by Execute or Retry when the attempt was cancelled
// (or superseded) before it settled. It wraps context.Canceled.
var ErrCancelled = fmt.Errorf("runner cancelled: %w", context.Canceled)

// ActionRunner is the reference Runner. It owns two observables: its status
// and its value, whose error channel carries the last failure.
//
// The runner's status field is the source of truth. Every change is
// republished by re-reading it under the status observable's lock, so the
// published status always matches the runner once concurrent control calls
// quiesce. Consecutive identical statuses are never published twice.
//
// Thread-safety: all methods are safe for concurrent use.
type ActionRunner[T any] struct {
	mu       sync.Mutex
	state    Status
	attempt  uint64
	action   Action[T]
	cancel   context.CancelFunc
	disposed bool

	status *observable.Distinct[Status]
	value  *observable.Value[T]
}

// New creates an Initial runner.
func New[T any]() *ActionRunner[T] {
	var zero T
	return &ActionRunner[T]{
		state:  StatusInitial,
		status: observable.NewDistinct(StatusInitial),
		value:  observable.NewValue(zero),
	}
}

// Status exposes the runner's status observable.
func (r *ActionRunner[T]) Status() observable.Readable[Status] {
	return r.status
}

// Value exposes the last successful result. Failures are published on its
// error channel; a later success clears it.
func (r *ActionRunner[T]) Value() observable.Readable[T] {
	return r.value
}

// Execute runs action and blocks until it settles. The runner is Pending
// while action runs, then Success or Error. Returns an InvalidStateError
// unless the runner is Initial.
func (r *ActionRunner[T]) Execute(ctx context.Context, action Action[T]) (T, error) {
	var zero T

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return zero, ErrDisposed
	}
	if r.state != StatusInitial {
		state := r.state
		r.mu.Unlock()
		return zero, &InvalidStateError{Op: "execute", Status: state}
	}
	r.action = action
	runCtx, attempt := r.beginLocked(ctx)
	r.mu.Unlock()

	return r.run(runCtx, attempt, action)
}

// Retry re-runs the last action. Returns an InvalidStateError unless the
// runner is in Error.
func (r *ActionRunner[T]) Retry(ctx context.Context) (T, error) {
	var zero T

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return zero, ErrDisposed
	}
	if r.state != StatusError {
		state := r.state
		r.mu.Unlock()
		return zero, &InvalidStateError{Op: "retry", Status: state}
	}
	action := r.action
	runCtx, attempt := r.beginLocked(ctx)
	r.mu.Unlock()

	return r.run(runCtx, attempt, action)
}

// Cancel cancels the in-flight action and returns the runner to Initial.
// The cancelled attempt's result is discarded. No-op unless Pending.
func (r *ActionRunner[T]) Cancel() {
	r.mu.Lock()
	if r.disposed || r.state != StatusPending {
		r.mu.Unlock()
		return
	}
	r.attempt++
	r.state = StatusInitial
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.publish()
}

// Disable moves an Initial runner to Disabled.
func (r *ActionRunner[T]) Disable() error {
	return r.toggle("disable", StatusDisabled)
}

// Enable moves a Disabled runner back to Initial.
func (r *ActionRunner[T]) Enable() error {
	return r.toggle("enable", StatusInitial)
}

func (r *ActionRunner[T]) toggle(op string, to Status) error {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return ErrDisposed
	}
	from := r.state
	allowed := CanTransition(from, to) && (from == StatusInitial || from == StatusDisabled)
	if !allowed {
		r.mu.Unlock()
		return &InvalidStateError{Op: op, Status: from}
	}
	r.state = to
	r.mu.Unlock()

	r.publish()
	return nil
}

// Dispose cancels any in-flight action and disposes both observables.
// Idempotent.
func (r *ActionRunner[T]) Dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	r.attempt++
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.status.Dispose()
	r.value.Dispose()
}

// beginLocked starts a new attempt. Caller holds r.mu.
func (r *ActionRunner[T]) beginLocked(ctx context.Context) (context.Context, uint64) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.attempt++
	r.state = StatusPending
	return runCtx, r.attempt
}

func (r *ActionRunner[T]) run(ctx context.Context, attempt uint64, action Action[T]) (T, error) {
	r.publish()

	result, err := invoke(ctx, action)

	r.mu.Lock()
	if attempt != r.attempt || r.state != StatusPending {
		r.mu.Unlock()
		var zero T
		return zero, ErrCancelled
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if err != nil {
		r.state = StatusError
	} else {
		r.state = StatusSuccess
	}
	r.mu.Unlock()

	if err != nil {
		r.value.SetError(err)
	} else {
		r.value.Set(result)
		if r.value.Err() != nil {
			r.value.SetError(nil)
		}
	}
	r.publish()

	return result, err
}

// publish republishes the runner's current status.
func (r *ActionRunner[T]) publish() {
	r.status.Update(func(Status) Status {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.state
	})
}

// invoke runs action, converting a panic into an error.
func invoke[T any](ctx context.Context, action Action[T]) (result T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("action panicked: %v", p)
		}
	}()
	return action(ctx)
}
