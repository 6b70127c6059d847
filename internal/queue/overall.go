package queue

import "github.com/roach88/hex/internal/runner"

// Counts holds one count per status, indexed by runner.Status.
type Counts [runner.StatusCount]int

// Total returns the sum of all counts.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Map returns the counts keyed by status name.
func (c Counts) Map() map[string]int {
	out := make(map[string]int, len(c))
	for _, s := range runner.Statuses() {
		out[s.String()] = c[s]
	}
	return out
}

// Overall derives the queue-wide status from per-status counts:
//
//	any Initial -> Initial
//	any Pending -> Pending
//	any Error   -> Error
//	otherwise   -> Success
//
// Success and Disabled counts are never consulted, so an empty queue (or one
// holding only disabled runners) is Success.
func Overall(c Counts) runner.Status {
	switch {
	case c[runner.StatusInitial] > 0:
		return runner.StatusInitial
	case c[runner.StatusPending] > 0:
		return runner.StatusPending
	case c[runner.StatusError] > 0:
		return runner.StatusError
	default:
		return runner.StatusSuccess
	}
}
