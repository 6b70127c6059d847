package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hex/internal/queue"
	"github.com/roach88/hex/internal/runner"
)

func enqueue(seq int64, index int, s runner.Status) queue.Transition {
	return queue.Transition{Seq: seq, Kind: queue.KindEnqueue, Index: index, To: s}
}

func move(seq int64, index int, from, to runner.Status) queue.Transition {
	return queue.Transition{Seq: seq, Kind: queue.KindMove, Index: index, From: from, To: to}
}

func reset(seq int64) queue.Transition {
	return queue.Transition{Seq: seq, Kind: queue.KindReset, Index: -1}
}

func TestFold(t *testing.T) {
	tests := []struct {
		name        string
		transitions []queue.Transition
		wantCounts  map[runner.Status]int
		wantStatus  runner.Status
	}{
		{
			name:       "empty",
			wantStatus: runner.StatusSuccess,
		},
		{
			name: "initial has priority",
			transitions: []queue.Transition{
				enqueue(1, 0, runner.StatusInitial),
				enqueue(2, 1, runner.StatusPending),
			},
			wantCounts: map[runner.Status]int{runner.StatusInitial: 1, runner.StatusPending: 1},
			wantStatus: runner.StatusInitial,
		},
		{
			name: "moves",
			transitions: []queue.Transition{
				enqueue(1, 0, runner.StatusInitial),
				enqueue(2, 1, runner.StatusInitial),
				move(3, 0, runner.StatusInitial, runner.StatusPending),
				move(4, 1, runner.StatusInitial, runner.StatusPending),
				move(5, 0, runner.StatusPending, runner.StatusError),
				move(6, 1, runner.StatusPending, runner.StatusSuccess),
			},
			wantCounts: map[runner.Status]int{runner.StatusError: 1, runner.StatusSuccess: 1},
			wantStatus: runner.StatusError,
		},
		{
			name: "reset then reuse index",
			transitions: []queue.Transition{
				enqueue(1, 0, runner.StatusError),
				reset(2),
				enqueue(3, 0, runner.StatusSuccess),
			},
			wantCounts: map[runner.Status]int{runner.StatusSuccess: 1},
			wantStatus: runner.StatusSuccess,
		},
		{
			name: "out of order input",
			transitions: []queue.Transition{
				move(2, 0, runner.StatusInitial, runner.StatusPending),
				enqueue(1, 0, runner.StatusInitial),
			},
			wantCounts: map[runner.Status]int{runner.StatusPending: 1},
			wantStatus: runner.StatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fold(tt.transitions)
			require.NoError(t, err)

			var want queue.Counts
			for s, n := range tt.wantCounts {
				want[s] = n
			}
			assert.Equal(t, want, got.Counts)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, len(tt.transitions), got.Transitions)
		})
	}
}

func TestFold_Inconsistent(t *testing.T) {
	tests := []struct {
		name        string
		transitions []queue.Transition
		wantErr     string
	}{
		{
			name:        "double enqueue",
			transitions: []queue.Transition{enqueue(1, 0, runner.StatusInitial), enqueue(2, 0, runner.StatusInitial)},
			wantErr:     "enqueued twice",
		},
		{
			name:        "unknown index",
			transitions: []queue.Transition{move(1, 3, runner.StatusInitial, runner.StatusPending)},
			wantErr:     "unknown index",
		},
		{
			name: "wrong source bucket",
			transitions: []queue.Transition{
				enqueue(1, 0, runner.StatusInitial),
				move(2, 0, runner.StatusPending, runner.StatusSuccess),
			},
			wantErr: "is initial, not pending",
		},
		{
			name:        "duplicate seq",
			transitions: []queue.Transition{enqueue(1, 0, runner.StatusInitial), enqueue(1, 1, runner.StatusInitial)},
			wantErr:     "duplicate seq",
		},
		{
			name:        "unknown kind",
			transitions: []queue.Transition{{Seq: 1, Kind: "teleport"}},
			wantErr:     "unknown transition kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fold(tt.transitions)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
