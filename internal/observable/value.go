package observable

import "sync"

// Subscription detaches a listener. Unsubscribe is idempotent and safe for
// concurrent use.
type Subscription struct {
	once   sync.Once
	detach func()
}

func newSubscription(detach func()) *Subscription {
	return &Subscription{detach: detach}
}

// Unsubscribe detaches the listener. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.detach != nil {
			s.detach()
		}
	})
}

// inert is returned by subscribe calls on a disposed observable.
func inert() *Subscription {
	return newSubscription(nil)
}

// Source is anything that announces changes without exposing a typed value.
// It is the type-erased hook used by Derive, When and Watch.
type Source interface {
	Changed(fn func()) *Subscription
}

// Snapshotter exposes the current value as an untyped snapshot.
type Snapshotter interface {
	Snapshot() any
}

// Readable is the read side of an observable. It is what the queue hands out
// for counters and the overall status, and what UI bindings subscribe to.
type Readable[T any] interface {
	Source
	Snapshotter

	Get() T
	Err() error
	OnChange(fn func(T)) *Subscription
	OnTransition(fn func(prev, next T)) *Subscription
	OnError(fn func(error)) *Subscription
}

type listener[F any] struct {
	id uint64
	fn F
}

// Value is a mutable cell that broadcasts value changes and errors to
// subscribers. The zero Value is not usable; construct with NewValue.
type Value[T any] struct {
	mu        sync.Mutex
	value     T
	err       error
	nextID    uint64
	listeners []listener[func(prev, next T)]
	errorSubs []listener[func(error)]
	disposed  bool
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{value: initial}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Snapshot returns the current value as any.
func (v *Value[T]) Snapshot() any {
	return v.Get()
}

// Set stores next and notifies value listeners. It is a no-op after Dispose.
func (v *Value[T]) Set(next T) {
	v.commit(func(T) (T, bool) { return next, true })
}

// Update atomically replaces the value with fn(current) and notifies value
// listeners. fn runs with the value lock held and must not touch v.
// Returns the stored value.
func (v *Value[T]) Update(fn func(current T) T) T {
	stored, _ := v.commit(func(current T) (T, bool) { return fn(current), true })
	return stored
}

// commit runs decide under the lock. When decide reports true the result is
// stored and listeners are notified after the lock is released.
func (v *Value[T]) commit(decide func(current T) (T, bool)) (T, bool) {
	v.mu.Lock()
	if v.disposed {
		current := v.value
		v.mu.Unlock()
		return current, false
	}

	prev := v.value
	next, ok := decide(prev)
	if !ok {
		v.mu.Unlock()
		return prev, false
	}
	v.value = next
	listeners := make([]listener[func(prev, next T)], len(v.listeners))
	copy(listeners, v.listeners)
	v.mu.Unlock()

	for _, l := range listeners {
		l.fn(prev, next)
	}
	return next, true
}

// Err returns the current error, or nil.
func (v *Value[T]) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// SetError stores err and notifies error listeners. Passing nil clears the
// error channel (and notifies). The value channel is untouched.
func (v *Value[T]) SetError(err error) {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return
	}
	v.err = err
	subs := make([]listener[func(error)], len(v.errorSubs))
	copy(subs, v.errorSubs)
	v.mu.Unlock()

	for _, l := range subs {
		l.fn(err)
	}
}

// OnChange subscribes fn to the value channel.
func (v *Value[T]) OnChange(fn func(T)) *Subscription {
	return v.OnTransition(func(_, next T) { fn(next) })
}

// OnTransition subscribes fn to the value channel with the previous value.
// Every write notifies, including writes that store an equal value.
func (v *Value[T]) OnTransition(fn func(prev, next T)) *Subscription {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return inert()
	}

	v.nextID++
	id := v.nextID
	v.listeners = append(v.listeners, listener[func(prev, next T)]{id: id, fn: fn})

	return newSubscription(func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.listeners = without(v.listeners, id)
	})
}

// Changed subscribes fn to the value channel without the value.
func (v *Value[T]) Changed(fn func()) *Subscription {
	return v.OnTransition(func(_, _ T) { fn() })
}

// OnError subscribes fn to the error channel.
func (v *Value[T]) OnError(fn func(error)) *Subscription {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return inert()
	}

	v.nextID++
	id := v.nextID
	v.errorSubs = append(v.errorSubs, listener[func(error)]{id: id, fn: fn})

	return newSubscription(func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.errorSubs = without(v.errorSubs, id)
	})
}

// Subscribers returns the number of attached value and error listeners.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.listeners) + len(v.errorSubs)
}

// Disposed reports whether Dispose has been called.
func (v *Value[T]) Disposed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.disposed
}

// Dispose detaches all listeners and makes the Value inert.
func (v *Value[T]) Dispose() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disposed = true
	v.listeners = nil
	v.errorSubs = nil
}

func without[F any](ls []listener[F], id uint64) []listener[F] {
	for i, l := range ls {
		if l.id == id {
			out := make([]listener[F], 0, len(ls)-1)
			out = append(out, ls[:i]...)
			return append(out, ls[i+1:]...)
		}
	}
	return ls
}
