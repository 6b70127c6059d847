package harness

import (
	"github.com/roach88/hex/internal/queue"
)

// TraceEvent records the queue state after one flow step.
type TraceEvent struct {
	// Step is the flow index.
	Step int `json:"step"`

	Op string `json:"op"`

	// Runner is the step's target runner, when it has one.
	Runner string `json:"runner,omitempty"`

	// Seq is the queue clock after the step: the number of transitions
	// applied so far.
	Seq int64 `json:"seq"`

	// Status is the overall queue status.
	Status string `json:"status"`

	// Counts holds every bucket count keyed by status name.
	Counts map[string]int `json:"counts"`

	// Error is the batch error collected by an await step.
	Error string `json:"error,omitempty"`
}

// canonicalValue converts the event to plain values for canonical JSON.
func (e TraceEvent) canonicalValue() map[string]any {
	m := map[string]any{
		"step":   e.Step,
		"op":     e.Op,
		"seq":    e.Seq,
		"status": e.Status,
		"counts": e.Counts,
	}
	if e.Runner != "" {
		m["runner"] = e.Runner
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	return m
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expect step matched.
	Pass bool `json:"pass"`

	// Trace holds one event per executed step.
	Trace []TraceEvent `json:"trace"`

	// Errors holds expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Transitions holds every applied queue transition in seq order.
	Transitions []queue.Transition `json:"-"`

	// Digest is the canonical hash of the trace.
	Digest string `json:"digest"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records an expectation failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Final returns the last trace event, or a zero event for an empty trace.
func (r *Result) Final() TraceEvent {
	if len(r.Trace) == 0 {
		return TraceEvent{}
	}
	return r.Trace[len(r.Trace)-1]
}
