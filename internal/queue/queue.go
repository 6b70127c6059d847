package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/hex/internal/observable"
	"github.com/roach88/hex/internal/runner"
)

// unseeded marks an index whose bucket has not been assigned yet.
const unseeded runner.Status = -1

// Option configures a Queue.
type Option func(*settings)

type settings struct {
	config   Config
	logger   *slog.Logger
	observer Observer
	clock    *Clock
}

// WithConfig merges cfg over the defaults.
func WithConfig(cfg Config) Option {
	return func(s *settings) {
		s.config.Merge(&cfg)
	}
}

// WithLogger sets the logger used for transition debug logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers an observer for applied transitions.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock sets the logical clock used to stamp transitions.
func WithClock(c *Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

type bucket struct {
	count   *observable.Counter
	members map[int]struct{}
}

// Member is a runner paired with its stable queue index.
type Member[T any] struct {
	Index  int
	Runner runner.Runner[T]
}

// Queue tracks a growable list of runners by status.
//
// Thread-safety: all methods are safe for concurrent use. Calling any method
// after Dispose is a programmer error; most become no-ops.
type Queue[T any] struct {
	mu         sync.Mutex
	generation uint64
	runners    []runner.Runner[T]
	members    []runner.Status
	subs       []*observable.Subscription
	buckets    [runner.StatusCount]bucket
	disposed   bool

	status   *observable.Memo[runner.Status]
	config   Config
	logger   *slog.Logger
	observer Observer
	clock    *Clock
}

// New creates a queue and enqueues runners.
func New[T any](runners []runner.Runner[T], opts ...Option) (*Queue[T], error) {
	s := settings{
		config:   DefaultConfig(),
		logger:   slog.New(slog.DiscardHandler),
		observer: NoOpObserver{},
		clock:    NewClock(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("queue config: %w", err)
	}

	q := &Queue[T]{
		config:   s.config,
		logger:   s.logger,
		observer: s.observer,
		clock:    s.clock,
	}
	for i := range q.buckets {
		q.buckets[i] = bucket{
			count:   observable.NewCounter(),
			members: make(map[int]struct{}),
		}
	}

	sources := []observable.Readable[int]{
		q.buckets[runner.StatusInitial].count.Value(),
		q.buckets[runner.StatusPending].count.Value(),
		q.buckets[runner.StatusError].count.Value(),
		q.buckets[runner.StatusSuccess].count.Value(),
	}
	q.status = observable.Combine(sources, func(v []int) runner.Status {
		var c Counts
		c[runner.StatusInitial] = v[0]
		c[runner.StatusPending] = v[1]
		c[runner.StatusError] = v[2]
		c[runner.StatusSuccess] = v[3]
		return Overall(c)
	})

	q.Enqueue(runners...)
	return q, nil
}

// Config returns the effective configuration.
func (q *Queue[T]) Config() Config {
	return q.config
}

// Enqueue appends runners. Indices continue from the current length.
//
// Each runner is subscribed first and seeded second, so a transition that
// lands between the two steps is never lost: both paths apply "move index to
// the runner's current status".
func (q *Queue[T]) Enqueue(runners ...runner.Runner[T]) {
	if len(runners) == 0 {
		return
	}

	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return
	}
	gen := q.generation
	start := len(q.runners)
	for _, r := range runners {
		q.runners = append(q.runners, r)
		q.members = append(q.members, unseeded)
		q.subs = append(q.subs, nil)
	}
	q.mu.Unlock()

	for offset, r := range runners {
		index := start + offset
		sub := r.Status().OnTransition(func(_, _ runner.Status) {
			q.sync(gen, index)
		})

		q.mu.Lock()
		attached := !q.disposed && gen == q.generation
		if attached {
			q.subs[index] = sub
		}
		q.mu.Unlock()

		if !attached {
			sub.Unsubscribe()
			continue
		}
		q.sync(gen, index)
	}
}

// sync moves index into the bucket of its runner's current status.
// Events from a previous generation, repeated events and stale events all
// resolve to a no-op because the target is always re-read.
func (q *Queue[T]) sync(gen uint64, index int) {
	q.mu.Lock()
	if q.disposed || gen != q.generation || index >= len(q.runners) {
		q.mu.Unlock()
		return
	}

	prev := q.members[index]
	next := q.runners[index].Status().Get()
	if prev == next || !next.Valid() {
		q.mu.Unlock()
		return
	}

	kind := KindMove
	if prev == unseeded {
		kind = KindEnqueue
	} else {
		delete(q.buckets[prev].members, index)
	}
	q.buckets[next].members[index] = struct{}{}
	q.members[index] = next

	t := Transition{
		Seq:   q.clock.Next(),
		Kind:  kind,
		Index: index,
		From:  prev,
		To:    next,
	}
	q.mu.Unlock()

	q.recount(next)
	if kind == KindMove {
		q.recount(prev)
	}

	q.logger.Debug("runner transition",
		"seq", t.Seq,
		"kind", t.Kind,
		"index", t.Index,
		"from", t.From,
		"to", t.To)
	q.observer.OnTransition(t)
}

// recount re-derives a bucket's published count from its member set.
func (q *Queue[T]) recount(s runner.Status) {
	q.buckets[s].count.Recount(func() int {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.buckets[s].members)
	})
}

func (q *Queue[T]) recountAll() {
	for _, s := range runner.Statuses() {
		q.recount(s)
	}
}

// Execute runs every runner that is Initial at call time. factory is called
// synchronously, once per selected runner, with the runner's queue index.
//
// Results are aligned with the selected runners in ascending index order.
// The join follows Config.Join: fail-fast returns the first *RunnerError and
// nil results while the others keep running; all-settled waits for every
// runner and returns a multierror of *RunnerError.
func (q *Queue[T]) Execute(ctx context.Context, factory func(r runner.Runner[T], index int) runner.Action[T]) ([]T, error) {
	selected := q.snapshot(runner.StatusInitial)

	calls := make([]call[T], len(selected))
	for i, m := range selected {
		r := m.Runner
		action := factory(r, m.Index)
		calls[i] = call[T]{
			index: m.Index,
			run: func(ctx context.Context) (T, error) {
				return r.Execute(ctx, action)
			},
		}
	}

	return q.join(ctx, calls)
}

// Retry retries every runner that is in Error at call time. It joins like
// Execute.
func (q *Queue[T]) Retry(ctx context.Context) ([]T, error) {
	selected := q.snapshot(runner.StatusError)

	calls := make([]call[T], len(selected))
	for i, m := range selected {
		r := m.Runner
		calls[i] = call[T]{
			index: m.Index,
			run:   r.Retry,
		}
	}

	return q.join(ctx, calls)
}

// Cancel asks every runner that is Pending at call time to cancel. It does
// not wait for the runners to settle.
func (q *Queue[T]) Cancel() {
	for _, m := range q.snapshot(runner.StatusPending) {
		m.Runner.Cancel()
	}
}

// Empty discards every runner and resets all buckets to zero.
//
// Empty does NOT unsubscribe from or dispose the discarded runners. Their
// subscriptions stay attached but are inert for this queue. Callers that
// need cleanup must dispose the runners themselves, or call Clear.
func (q *Queue[T]) Empty() {
	q.reset()
}

// Clear unsubscribes from and disposes every runner, then empties the queue.
func (q *Queue[T]) Clear() {
	runners, subs := q.reset()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	for _, r := range runners {
		r.Dispose()
	}
}

func (q *Queue[T]) reset() ([]runner.Runner[T], []*observable.Subscription) {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return nil, nil
	}
	runners, subs := q.runners, q.subs
	q.generation++
	q.runners = nil
	q.members = nil
	q.subs = nil
	for i := range q.buckets {
		q.buckets[i].members = make(map[int]struct{})
	}
	t := Transition{
		Seq:   q.clock.Next(),
		Kind:  KindReset,
		Index: -1,
	}
	q.mu.Unlock()

	q.recountAll()

	q.logger.Debug("queue reset", "seq", t.Seq, "discarded", len(runners))
	q.observer.OnTransition(t)

	return runners, subs
}

// Dispose unsubscribes from and disposes every runner, every bucket counter
// and the overall status. Idempotent.
func (q *Queue[T]) Dispose() {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return
	}
	q.disposed = true
	runners, subs := q.runners, q.subs
	q.runners = nil
	q.members = nil
	q.subs = nil
	q.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	for _, r := range runners {
		r.Dispose()
	}
	q.status.Dispose()
	for i := range q.buckets {
		q.buckets[i].count.Dispose()
	}
}

// Status returns the derived overall status.
func (q *Queue[T]) Status() *observable.Memo[runner.Status] {
	return q.status
}

// CountOf exposes the live count of one bucket.
func (q *Queue[T]) CountOf(s runner.Status) observable.Readable[int] {
	return q.buckets[s].count.Value()
}

// Count returns the published count of one bucket.
func (q *Queue[T]) Count(s runner.Status) int {
	return q.buckets[s].count.Get()
}

// Counts returns every bucket size read atomically from the member sets.
func (q *Queue[T]) Counts() Counts {
	q.mu.Lock()
	defer q.mu.Unlock()

	var c Counts
	for i := range q.buckets {
		c[i] = len(q.buckets[i].members)
	}
	return c
}

// Len returns the number of runners in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.runners)
}

// Runner returns the runner at index.
func (q *Queue[T]) Runner(index int) (runner.Runner[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.runners) {
		return nil, false
	}
	return q.runners[index], true
}

// Members returns the members of one bucket. Order is ascending index, but
// callers should treat it as unspecified.
func (q *Queue[T]) Members(s runner.Status) []Member[T] {
	return q.snapshot(s)
}

// Successful returns the runners in the Success bucket.
func (q *Queue[T]) Successful() []runner.Runner[T] { return q.list(runner.StatusSuccess) }

// Initial returns the runners in the Initial bucket.
func (q *Queue[T]) Initial() []runner.Runner[T] { return q.list(runner.StatusInitial) }

// Pending returns the runners in the Pending bucket.
func (q *Queue[T]) Pending() []runner.Runner[T] { return q.list(runner.StatusPending) }

// Errored returns the runners in the Error bucket.
func (q *Queue[T]) Errored() []runner.Runner[T] { return q.list(runner.StatusError) }

// Disabled returns the runners in the Disabled bucket.
func (q *Queue[T]) Disabled() []runner.Runner[T] { return q.list(runner.StatusDisabled) }

func (q *Queue[T]) list(s runner.Status) []runner.Runner[T] {
	members := q.snapshot(s)
	out := make([]runner.Runner[T], len(members))
	for i, m := range members {
		out[i] = m.Runner
	}
	return out
}

// snapshot resolves a bucket's index set against the runner list.
func (q *Queue[T]) snapshot(s runner.Status) []Member[T] {
	if !s.Valid() {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	indices := make([]int, 0, len(q.buckets[s].members))
	for i := range q.buckets[s].members {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	out := make([]Member[T], len(indices))
	for i, index := range indices {
		out[i] = Member[T]{Index: index, Runner: q.runners[index]}
	}
	return out
}
