// Package harness runs scripted scenarios against the runner queue.
//
// A scenario declares named ActionRunner[string] instances and a flow of
// steps. Every unit of work started by the harness blocks on a per-runner
// gate until a settle step completes it, so runs are deterministic even
// though runners execute on their own goroutines. Each step waits for the
// status changes it causes before the next step starts.
//
// After every step the harness snapshots the overall status and bucket
// counts into a trace. Traces are compared against golden files and hashed
// into a digest (see golden.go).
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/hex/internal/observable"
	"github.com/roach88/hex/internal/queue"
	"github.com/roach88/hex/internal/runner"
)

// DefaultStepTimeout bounds how long a step waits for status changes.
const DefaultStepTimeout = 5 * time.Second

// Options tunes a scenario run.
type Options struct {
	// Observer also receives every queue transition (e.g. a journal
	// recorder).
	Observer queue.Observer

	// Logger receives step debug logs. Defaults to a discard logger.
	Logger *slog.Logger

	// StepTimeout overrides DefaultStepTimeout.
	StepTimeout time.Duration
}

type outcome struct {
	value string
	err   error
}

// harness holds the state of one scenario run. Steps run on the caller's
// goroutine; only runner actions and batch calls run elsewhere.
type harness struct {
	scenario *Scenario
	logger   *slog.Logger
	timeout  time.Duration

	queue  *queue.Queue[string]
	clock  *queue.Clock
	domain *observable.Domain

	runners  map[string]*runner.ActionRunner[string]
	gates    map[string]chan outcome
	disposed map[string]bool

	// names maps queue index to runner name.
	names []string

	batches []chan error
	loose   sync.WaitGroup
	lastErr *string

	mu          sync.Mutex
	transitions []queue.Transition
}

// Run executes a scenario and returns its result.
//
// Expectation mismatches are reported in the result. An error is returned
// only when the flow itself cannot run: a step targets a runner in the
// wrong status, or a step times out waiting for a status change.
func Run(ctx context.Context, s *Scenario, opts Options) (*Result, error) {
	h := &harness{
		scenario: s,
		logger:   opts.Logger,
		timeout:  opts.StepTimeout,
		clock:    queue.NewClock(),
		runners:  make(map[string]*runner.ActionRunner[string], len(s.Runners)),
		gates:    make(map[string]chan outcome, len(s.Runners)),
		disposed: make(map[string]bool),
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	if h.timeout <= 0 {
		h.timeout = DefaultStepTimeout
	}

	observers := []queue.Observer{queue.ObserverFunc(h.record)}
	if opts.Observer != nil {
		observers = append(observers, opts.Observer)
	}

	cfg := queue.DefaultConfig()
	cfg.Merge(s.Config)

	q, err := queue.New[string](nil,
		queue.WithConfig(cfg),
		queue.WithLogger(h.logger),
		queue.WithClock(h.clock),
		queue.WithObserver(queue.ObserverFunc(func(t queue.Transition) {
			for _, o := range observers {
				o.OnTransition(t)
			}
		})),
	)
	if err != nil {
		return nil, err
	}
	h.queue = q
	defer h.shutdown()

	state := map[string]observable.Snapshotter{"status": q.Status()}
	for _, st := range runner.Statuses() {
		state["count."+st.String()] = q.CountOf(st)
	}
	h.domain = observable.NewDomain(state)

	for _, decl := range s.Runners {
		if err := h.declare(decl); err != nil {
			return nil, err
		}
	}

	result := NewResult()
	for i, step := range s.Flow {
		h.logger.Debug("scenario step", "scenario", s.Name, "step", i, "op", step.Op)

		event, err := h.execute(ctx, i, step, result)
		if err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Op, err)
		}
		result.Trace = append(result.Trace, event)
	}

	h.mu.Lock()
	result.Transitions = slices.Clone(h.transitions)
	h.mu.Unlock()
	sort.Slice(result.Transitions, func(i, j int) bool {
		return result.Transitions[i].Seq < result.Transitions[j].Seq
	})

	digest, err := TraceDigest(s.Name, result.Trace)
	if err != nil {
		return nil, err
	}
	result.Digest = digest

	return result, nil
}

// declare creates the runner for decl. The runner is registered before it
// is configured so shutdown disposes it even when configuration fails.
func (h *harness) declare(decl RunnerDecl) error {
	if _, ok := h.runners[decl.Name]; ok {
		return fmt.Errorf("duplicate runner %q", decl.Name)
	}
	r := runner.New[string]()
	h.runners[decl.Name] = r
	h.gates[decl.Name] = make(chan outcome, 1)
	if decl.Disabled {
		if err := r.Disable(); err != nil {
			return fmt.Errorf("runner %q: %w", decl.Name, err)
		}
	}
	return nil
}

func (h *harness) record(t queue.Transition) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transitions = append(h.transitions, t)
}

// shutdown disposes everything so no action goroutine outlives the run.
func (h *harness) shutdown() {
	h.queue.Dispose()
	for _, r := range h.runners {
		r.Dispose()
	}
	h.loose.Wait()
}

func (h *harness) execute(ctx context.Context, i int, step Step, result *Result) (TraceEvent, error) {
	event := TraceEvent{Step: i, Op: step.Op, Runner: step.Runner}

	var err error
	switch step.Op {
	case OpEnqueue:
		err = h.enqueue(step.Runners)
	case OpStart:
		err = h.start(ctx, step.Runner)
	case OpExecute:
		err = h.batch(ctx, runner.StatusInitial)
	case OpRetry:
		err = h.batch(ctx, runner.StatusError)
	case OpSettle:
		err = h.settle(ctx, step)
	case OpCancel:
		h.queue.Cancel()
	case OpAwait:
		var msg string
		msg, err = h.await(ctx)
		event.Error = msg
	case OpEmpty:
		h.queue.Empty()
		h.names = nil
	case OpClear:
		for _, name := range h.names {
			h.disposed[name] = true
		}
		h.queue.Clear()
		h.names = nil
	case OpDisable:
		err = h.live(step.Runner, func(r *runner.ActionRunner[string]) error { return r.Disable() })
	case OpEnable:
		err = h.live(step.Runner, func(r *runner.ActionRunner[string]) error { return r.Enable() })
	case OpExpect:
		for _, msg := range h.expect(step) {
			result.AddError(fmt.Sprintf("flow[%d]: %s", i, msg))
		}
	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}
	if err != nil {
		return TraceEvent{}, err
	}

	h.snapshot(&event)
	return event, nil
}

// snapshot fills the event from the queue's observable domain.
func (h *harness) snapshot(event *TraceEvent) {
	values := h.domain.Values()

	event.Seq = h.clock.Current()
	if status, ok := values["status"].(runner.Status); ok {
		event.Status = status.String()
	}
	event.Counts = make(map[string]int, runner.StatusCount)
	for _, st := range runner.Statuses() {
		n, _ := values["count."+st.String()].(int)
		event.Counts[st.String()] = n
	}
}

func (h *harness) live(name string, fn func(*runner.ActionRunner[string]) error) error {
	if h.disposed[name] {
		return fmt.Errorf("runner %q was disposed by clear", name)
	}
	return fn(h.runners[name])
}

func (h *harness) enqueue(names []string) error {
	rs := make([]runner.Runner[string], 0, len(names))
	for _, name := range names {
		if h.disposed[name] {
			return fmt.Errorf("runner %q was disposed by clear", name)
		}
		rs = append(rs, h.runners[name])
	}

	h.names = append(h.names, names...)
	h.queue.Enqueue(rs...)
	return nil
}

// action returns a unit of work that completes when name is settled.
func (h *harness) action(name string) runner.Action[string] {
	gate := h.gates[name]
	return func(ctx context.Context) (string, error) {
		select {
		case o := <-gate:
			return o.value, o.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// start runs a runner outside the queue so it can be enqueued while Pending.
func (h *harness) start(ctx context.Context, name string) error {
	r := h.runners[name]
	if h.disposed[name] {
		return fmt.Errorf("runner %q was disposed by clear", name)
	}
	if s := r.Status().Get(); s != runner.StatusInitial {
		return fmt.Errorf("runner %q is %s, not initial", name, s)
	}

	stepCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	action := h.action(name)
	return h.wait(stepCtx, func() {
		h.loose.Add(1)
		go func() {
			defer h.loose.Done()
			_, _ = r.Execute(ctx, action)
		}()
	}, r.Status())
}

// batch launches Execute or Retry on the queue and waits until every
// selected runner is Pending. The call's error is collected by await.
func (h *harness) batch(ctx context.Context, from runner.Status) error {
	members := h.queue.Members(from)
	names := make(map[int]string, len(members))
	sources := make([]observable.Source, 0, len(members))
	for _, m := range members {
		names[m.Index] = h.names[m.Index]
		sources = append(sources, m.Runner.Status())
	}

	stepCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	done := make(chan error, 1)
	h.batches = append(h.batches, done)

	return h.wait(stepCtx, func() {
		h.loose.Add(1)
		go func() {
			defer h.loose.Done()
			var err error
			if from == runner.StatusInitial {
				_, err = h.queue.Execute(ctx, func(_ runner.Runner[string], index int) runner.Action[string] {
					return h.action(names[index])
				})
			} else {
				_, err = h.queue.Retry(ctx)
			}
			done <- err
		}()
	}, sources...)
}

// settle completes a pending runner's unit of work and waits for the
// runner to publish its new status.
func (h *harness) settle(ctx context.Context, step Step) error {
	r := h.runners[step.Runner]
	if s := r.Status().Get(); s != runner.StatusPending {
		return fmt.Errorf("runner %q is %s, not pending", step.Runner, s)
	}

	o := outcome{value: step.Value}
	if step.Outcome == OutcomeError {
		msg := step.Value
		if msg == "" {
			msg = "failed"
		}
		o = outcome{err: errors.New(msg)}
	}

	stepCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	gate := h.gates[step.Runner]
	return h.wait(stepCtx, func() {
		select {
		case gate <- o:
		default:
		}
	}, r.Status())
}

// await joins every outstanding batch call in launch order.
func (h *harness) await(ctx context.Context) (string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var msgs []string
	for i, done := range h.batches {
		select {
		case err := <-done:
			if err != nil {
				msgs = append(msgs, err.Error())
			}
		case <-stepCtx.Done():
			return "", fmt.Errorf("batch %d did not settle: %w", i, stepCtx.Err())
		}
	}
	h.batches = nil

	msg := strings.Join(msgs, "; ")
	h.lastErr = &msg
	return msg, nil
}

func (h *harness) wait(ctx context.Context, action func(), sources ...observable.Source) error {
	if err := observable.Watch(ctx, action, sources...); err != nil {
		return fmt.Errorf("waiting for runner status: %w", err)
	}
	return nil
}

// expect returns one message per mismatch.
func (h *harness) expect(step Step) []string {
	var msgs []string

	if step.Status != "" {
		if got := h.queue.Status().Get().String(); got != step.Status {
			msgs = append(msgs, fmt.Sprintf("status: expected %s, got %s", step.Status, got))
		}
	}

	for _, name := range sortedKeys(step.Counts) {
		st, _ := runner.ParseStatus(name)
		if got := h.queue.Count(st); got != step.Counts[name] {
			msgs = append(msgs, fmt.Sprintf("count %s: expected %d, got %d", name, step.Counts[name], got))
		}
	}

	for _, name := range sortedKeys(step.Members) {
		st, _ := runner.ParseStatus(name)
		got := []string{}
		for _, m := range h.queue.Members(st) {
			got = append(got, h.names[m.Index])
		}
		want := slices.Clone(step.Members[name])
		sort.Strings(got)
		sort.Strings(want)
		if !slices.Equal(got, want) {
			msgs = append(msgs, fmt.Sprintf("members %s: expected %v, got %v", name, want, got))
		}
	}

	if step.Error != nil {
		got := ""
		if h.lastErr != nil {
			got = *h.lastErr
		}
		want := *step.Error
		switch {
		case want == "" && got != "":
			msgs = append(msgs, fmt.Sprintf("error: expected none, got %q", got))
		case want != "" && !strings.Contains(got, want):
			msgs = append(msgs, fmt.Sprintf("error: expected %q, got %q", want, got))
		}
	}

	return msgs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
