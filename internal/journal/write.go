package journal

import (
	"context"
	"fmt"

	"github.com/roach88/hex/internal/queue"
	"github.com/roach88/hex/internal/runner"
)

// Run is one recorded queue run.
type Run struct {
	ID         string
	Name       string
	CreatedSeq int64
	Digest     string
}

// BeginRun inserts a new run with an id from gen. CreatedSeq continues the
// journal's own run counter.
func (j *Journal) BeginRun(ctx context.Context, gen RunIDGenerator, name string) (Run, error) {
	run := Run{ID: gen.Generate(), Name: name}

	err := j.db.QueryRowContext(ctx, `
		INSERT INTO runs (id, name, created_seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(created_seq), 0) + 1 FROM runs))
		RETURNING created_seq
	`, run.ID, run.Name).Scan(&run.CreatedSeq)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}

	return run, nil
}

// SetDigest stores the trace digest of a finished run.
func (j *Journal) SetDigest(ctx context.Context, runID, digest string) error {
	res, err := j.db.ExecContext(ctx, `UPDATE runs SET digest = ? WHERE id = ?`, digest, runID)
	if err != nil {
		return fmt.Errorf("set digest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set digest: %w", err)
	}
	if n == 0 {
		return &RunNotFoundError{RunID: runID}
	}
	return nil
}

// WriteTransition appends one transition to a run. Writing the same seq
// twice is a no-op.
func (j *Journal) WriteTransition(ctx context.Context, runID string, t queue.Transition) error {
	from, to := statusColumns(t)

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO transitions (run_id, seq, kind, runner_index, from_status, to_status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`, runID, t.Seq, string(t.Kind), t.Index, from, to)
	if err != nil {
		return fmt.Errorf("write transition %d: %w", t.Seq, err)
	}

	return nil
}

// statusColumns renders the statuses that are meaningful for t's kind.
func statusColumns(t queue.Transition) (from, to string) {
	switch t.Kind {
	case queue.KindEnqueue:
		return "", t.To.String()
	case queue.KindMove:
		return t.From.String(), t.To.String()
	default:
		return "", ""
	}
}

func parseStatusColumn(s string) (runner.Status, error) {
	if s == "" {
		return runner.StatusInitial, nil
	}
	return runner.ParseStatus(s)
}
