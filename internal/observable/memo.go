package observable

import "sync"

// Memo is a read-only observable recomputed from a fixed set of sources.
// It publishes on every source change, even when the result is unchanged.
type Memo[T any] struct {
	value   *Value[T]
	compute func() T

	mu   sync.Mutex
	subs []*Subscription
}

// Combine derives a value from an ordered tuple of same-typed sources. fn
// receives the latest value of every source, in the order given.
func Combine[S, T any](sources []Readable[S], fn func(values []S) T) *Memo[T] {
	erased := make([]Source, len(sources))
	for i, s := range sources {
		erased[i] = s
	}

	return Derive(func() T {
		values := make([]S, len(sources))
		for i, s := range sources {
			values[i] = s.Get()
		}
		return fn(values)
	}, erased...)
}

// Derive builds a Memo from an arbitrary compute function that reads its
// sources itself. The Memo subscribes to every source, then computes its
// initial value.
func Derive[T any](compute func() T, sources ...Source) *Memo[T] {
	var zero T
	m := &Memo[T]{
		value:   NewValue(zero),
		compute: compute,
	}

	m.subs = make([]*Subscription, 0, len(sources))
	for _, s := range sources {
		m.subs = append(m.subs, s.Changed(m.recompute))
	}
	m.recompute()

	return m
}

// recompute reads every source while holding the memo's value lock, so the
// last recompute to commit always reflects the latest source values.
func (m *Memo[T]) recompute() {
	m.value.Update(func(T) T { return m.compute() })
}

// Get returns the current derived value.
func (m *Memo[T]) Get() T { return m.value.Get() }

// Snapshot returns the current derived value as any.
func (m *Memo[T]) Snapshot() any { return m.value.Get() }

// Err returns the memo's error channel value. Memos never set one themselves.
func (m *Memo[T]) Err() error { return m.value.Err() }

// OnChange subscribes fn to derived value changes.
func (m *Memo[T]) OnChange(fn func(T)) *Subscription { return m.value.OnChange(fn) }

// OnTransition subscribes fn to derived value changes with the previous value.
func (m *Memo[T]) OnTransition(fn func(prev, next T)) *Subscription {
	return m.value.OnTransition(fn)
}

// OnError subscribes fn to the memo's error channel.
func (m *Memo[T]) OnError(fn func(error)) *Subscription { return m.value.OnError(fn) }

// Changed subscribes fn to derived value changes without the value.
func (m *Memo[T]) Changed(fn func()) *Subscription { return m.value.Changed(fn) }

// Dispose detaches from every source and disposes the memo's own channel.
func (m *Memo[T]) Dispose() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	m.value.Dispose()
}
