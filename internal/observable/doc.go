// Package observable provides the minimal reactive primitives the queue is
// built on.
//
// # Value
//
// A Value is a mutable cell with two independent channels: a value channel
// and an error channel. Setting one never clears the other.
//
//	v := observable.NewValue(0)
//	sub := v.OnChange(func(n int) { fmt.Println("now", n) })
//	v.Set(1) // prints "now 1" before Set returns
//	sub.Unsubscribe()
//
// # Notification Model
//
// Notification is synchronous: listeners run on the goroutine that called
// Set, Update or SetError, in subscription order, and complete before that
// call returns. The value lock is released before listeners run, so a
// listener may read or write the value it is subscribed to.
//
// Listeners are snapshotted when a notification starts. A listener added
// while a notification is in flight does not receive that notification.
//
// When several goroutines write the same Value, each write is atomic but
// the order in which listeners observe concurrent writes is not defined.
// Use Update to re-derive a value from its source of truth so the stored
// value is always current once writers quiesce.
//
// # Disposal
//
// Dispose detaches every listener. After disposal writes are ignored,
// subscribe calls return an inert Subscription and Get keeps returning the
// last stored value. Dispose is idempotent.
//
// # Derived Values
//
// Combine and Derive build a Memo whose value is recomputed from a fixed
// set of sources whenever any of them changes. The combining function must
// be pure: it may run for any subset of source changes.
package observable
