package observable

// Distinct is a Value that only commits a write when the new value differs
// from the current one under its equality predicate.
type Distinct[T any] struct {
	*Value[T]
	equal func(old, next T) bool
}

// NewDistinct creates a Distinct that compares with ==.
func NewDistinct[T comparable](initial T) *Distinct[T] {
	return NewDistinctFunc(initial, func(old, next T) bool { return old == next })
}

// NewDistinctFunc creates a Distinct with a caller supplied predicate.
// equal reports whether next should be treated as the same value as old.
func NewDistinctFunc[T any](initial T, equal func(old, next T) bool) *Distinct[T] {
	return &Distinct[T]{Value: NewValue(initial), equal: equal}
}

// Set commits next and notifies listeners unless it is equal to the current
// value. Reports whether the commit happened. Always false after Dispose.
func (d *Distinct[T]) Set(next T) bool {
	_, ok := d.commit(func(current T) (T, bool) {
		return next, !d.equal(current, next)
	})
	return ok
}

// Update replaces the value with fn(current) under the same filter as Set.
// Reports whether the commit happened.
func (d *Distinct[T]) Update(fn func(current T) T) bool {
	_, ok := d.commit(func(current T) (T, bool) {
		next := fn(current)
		return next, !d.equal(current, next)
	})
	return ok
}
