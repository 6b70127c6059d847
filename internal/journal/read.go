package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/hex/internal/queue"
)

// RunNotFoundError is returned when a run id is not in the journal.
type RunNotFoundError struct {
	RunID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run %q not found", e.RunID)
}

// IsRunNotFound returns true if err is or wraps a RunNotFoundError.
func IsRunNotFound(err error) bool {
	var nf *RunNotFoundError
	return errors.As(err, &nf)
}

// Runs returns every run ordered by creation.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, name, created_seq, digest
		FROM runs
		ORDER BY created_seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedSeq, &r.Digest); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// GetRun returns one run.
func (j *Journal) GetRun(ctx context.Context, runID string) (Run, error) {
	var r Run
	err := j.db.QueryRowContext(ctx, `
		SELECT id, name, created_seq, digest
		FROM runs
		WHERE id = ?
	`, runID).Scan(&r.ID, &r.Name, &r.CreatedSeq, &r.Digest)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, &RunNotFoundError{RunID: runID}
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// Read returns a run's transitions in seq order. For enqueue transitions
// From is reported as Initial; for reset transitions both statuses are.
func (j *Journal) Read(ctx context.Context, runID string) ([]queue.Transition, error) {
	if _, err := j.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, kind, runner_index, from_status, to_status
		FROM transitions
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	transitions := []queue.Transition{}
	for rows.Next() {
		var (
			t        queue.Transition
			kind     string
			from, to string
		)
		if err := rows.Scan(&t.Seq, &kind, &t.Index, &from, &to); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.Kind = queue.TransitionKind(kind)
		if t.From, err = parseStatusColumn(from); err != nil {
			return nil, fmt.Errorf("transition %d: %w", t.Seq, err)
		}
		if t.To, err = parseStatusColumn(to); err != nil {
			return nil, fmt.Errorf("transition %d: %w", t.Seq, err)
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}

	return transitions, nil
}
