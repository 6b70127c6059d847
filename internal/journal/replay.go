package journal

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/hex/internal/queue"
	"github.com/roach88/hex/internal/runner"
)

// ReplayResult is the queue state rebuilt from a run's transitions.
type ReplayResult struct {
	// Members maps each live runner index to its bucket.
	Members map[int]runner.Status

	Counts queue.Counts
	Status runner.Status

	// Transitions is the number of transitions folded.
	Transitions int

	// LastSeq is the highest seq folded, 0 for an empty run.
	LastSeq int64
}

// Indices returns the members of one bucket in ascending order.
func (r ReplayResult) Indices(s runner.Status) []int {
	out := []int{}
	for index, status := range r.Members {
		if status == s {
			out = append(out, index)
		}
	}
	sort.Ints(out)
	return out
}

// Fold rebuilds bucket membership from transitions. It is pure: the input
// is sorted by seq on a copy and checked for consistency, so a corrupted
// or reordered log is reported rather than silently folded.
func Fold(transitions []queue.Transition) (ReplayResult, error) {
	ordered := make([]queue.Transition, len(transitions))
	copy(ordered, transitions)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	members := make(map[int]runner.Status)
	var lastSeq int64
	for i, t := range ordered {
		if i > 0 && t.Seq == lastSeq {
			return ReplayResult{}, fmt.Errorf("duplicate seq %d", t.Seq)
		}
		lastSeq = t.Seq

		switch t.Kind {
		case queue.KindEnqueue:
			if _, ok := members[t.Index]; ok {
				return ReplayResult{}, fmt.Errorf("seq %d: index %d enqueued twice", t.Seq, t.Index)
			}
			members[t.Index] = t.To
		case queue.KindMove:
			current, ok := members[t.Index]
			if !ok {
				return ReplayResult{}, fmt.Errorf("seq %d: move of unknown index %d", t.Seq, t.Index)
			}
			if current != t.From {
				return ReplayResult{}, fmt.Errorf("seq %d: index %d is %s, not %s", t.Seq, t.Index, current, t.From)
			}
			members[t.Index] = t.To
		case queue.KindReset:
			members = make(map[int]runner.Status)
		default:
			return ReplayResult{}, fmt.Errorf("seq %d: unknown transition kind %q", t.Seq, t.Kind)
		}
	}

	var counts queue.Counts
	for _, s := range members {
		counts[s]++
	}

	return ReplayResult{
		Members:     members,
		Counts:      counts,
		Status:      queue.Overall(counts),
		Transitions: len(ordered),
		LastSeq:     lastSeq,
	}, nil
}

// Replay reads a run and folds its transitions.
func (j *Journal) Replay(ctx context.Context, runID string) (ReplayResult, error) {
	transitions, err := j.Read(ctx, runID)
	if err != nil {
		return ReplayResult{}, err
	}

	result, err := Fold(transitions)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay run %s: %w", runID, err)
	}
	return result, nil
}
