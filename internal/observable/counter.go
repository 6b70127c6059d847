package observable

// Counter pairs an integer observable with increment, decrement and reset.
type Counter struct {
	value *Value[int]
}

// NewCounter creates a Counter at zero.
func NewCounter() *Counter {
	return &Counter{value: NewValue(0)}
}

// Increment adds one and returns the new count.
func (c *Counter) Increment() int {
	return c.value.Update(func(n int) int { return n + 1 })
}

// Decrement subtracts one and returns the new count.
func (c *Counter) Decrement() int {
	return c.value.Update(func(n int) int { return n - 1 })
}

// Reset sets the count to zero.
func (c *Counter) Reset() {
	c.value.Set(0)
}

// Recount replaces the count with fn(), evaluated under the counter's lock.
// fn must not touch the counter.
func (c *Counter) Recount(fn func() int) int {
	return c.value.Update(func(int) int { return fn() })
}

// Get returns the current count.
func (c *Counter) Get() int {
	return c.value.Get()
}

// Value exposes the count as a read-only observable.
func (c *Counter) Value() Readable[int] {
	return c.value
}

// Dispose disposes the underlying observable.
func (c *Counter) Dispose() {
	c.value.Dispose()
}
