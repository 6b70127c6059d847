package journal

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/hex/internal/queue"
)

// Recorder writes every queue transition of one run to the journal.
// It implements queue.Observer.
//
// Observer callbacks cannot return errors, so the first write failure is
// kept and reported by Err. Later writes are still attempted.
type Recorder struct {
	journal *Journal
	runID   string
	ctx     context.Context
	logger  *slog.Logger

	mu      sync.Mutex
	err     error
	written int
}

var _ queue.Observer = (*Recorder)(nil)

// Recorder returns an observer that records into runID.
func (j *Journal) Recorder(ctx context.Context, runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		journal: j,
		runID:   runID,
		ctx:     ctx,
		logger:  logger,
	}
}

// OnTransition implements queue.Observer.
func (r *Recorder) OnTransition(t queue.Transition) {
	err := r.journal.WriteTransition(r.ctx, r.runID, t)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.logger.Error("journal write failed",
			"run_id", r.runID,
			"seq", t.Seq,
			"error", err)
		if r.err == nil {
			r.err = err
		}
		return
	}
	r.written++
}

// Written returns the number of transitions recorded.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
