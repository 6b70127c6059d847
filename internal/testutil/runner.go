// Package testutil holds test doubles shared across packages.
package testutil

import (
	"context"
	"sync"

	"github.com/roach88/hex/internal/observable"
	"github.com/roach88/hex/internal/runner"
)

// StubRunner is a synchronous runner.Runner[string] whose status is set
// directly by the test. Execute and Retry settle before returning. Its
// status channel notifies on every write, including duplicates, so tests
// can replay redundant events into a queue.
//
// Thread-safety: all methods are safe for concurrent use.
type StubRunner struct {
	status *observable.Value[runner.Status]

	mu        sync.Mutex
	executed  int
	retried   int
	cancelled int
	disposed  bool
	retryErr  error
}

var _ runner.Runner[string] = (*StubRunner)(nil)

// NewStubRunner creates a stub in status s.
func NewStubRunner(s runner.Status) *StubRunner {
	return &StubRunner{status: observable.NewValue(s)}
}

// StubRunners creates one stub per status and returns them both as stubs
// and as the runner slice a queue accepts.
func StubRunners(statuses ...runner.Status) ([]*StubRunner, []runner.Runner[string]) {
	stubs := make([]*StubRunner, len(statuses))
	runners := make([]runner.Runner[string], len(statuses))
	for i, s := range statuses {
		stubs[i] = NewStubRunner(s)
		runners[i] = stubs[i]
	}
	return stubs, runners
}

func (s *StubRunner) Status() observable.Readable[runner.Status] { return s.status }

// Execute moves to Pending, runs action, and settles on its result.
func (s *StubRunner) Execute(ctx context.Context, action runner.Action[string]) (string, error) {
	s.mu.Lock()
	s.executed++
	s.mu.Unlock()

	s.status.Set(runner.StatusPending)
	v, err := action(ctx)
	if err != nil {
		s.status.Set(runner.StatusError)
		return "", err
	}
	s.status.Set(runner.StatusSuccess)
	return v, nil
}

// Retry moves to Pending and settles with the error set by SetRetryErr,
// or succeeds with "retried".
func (s *StubRunner) Retry(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.retried++
	err := s.retryErr
	s.mu.Unlock()

	s.status.Set(runner.StatusPending)
	if err != nil {
		s.status.Set(runner.StatusError)
		return "", err
	}
	s.status.Set(runner.StatusSuccess)
	return "retried", nil
}

// Cancel returns the stub to Initial.
func (s *StubRunner) Cancel() {
	s.mu.Lock()
	s.cancelled++
	s.mu.Unlock()
	s.status.Set(runner.StatusInitial)
}

func (s *StubRunner) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.mu.Unlock()
	s.status.Dispose()
}

// Set publishes a status, even if it equals the current one.
func (s *StubRunner) Set(status runner.Status) { s.status.Set(status) }

// SetRetryErr makes later Retry calls fail with err.
func (s *StubRunner) SetRetryErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryErr = err
}

// Calls reports how often each control operation was invoked.
func (s *StubRunner) Calls() (executed, retried, cancelled int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executed, s.retried, s.cancelled
}

// Subscribers reports how many listeners are attached to the status.
func (s *StubRunner) Subscribers() int { return s.status.Subscribers() }

func (s *StubRunner) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
