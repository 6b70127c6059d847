// Package queue implements the async action runner queue: a growable list of
// runners with O(1) per-status bookkeeping and a derived overall status.
//
// ARCHITECTURE:
//
// Buckets:
// For every runner.Status the queue keeps a bucket holding the set of member
// indices and an observable count. Every runner belongs to exactly one
// bucket. A status change moves one index between two buckets in constant
// time; nothing ever rescans the runner list.
//
// Enqueue Protocol:
// Enqueue subscribes to the runner's status transitions first, then seeds
// its bucket from the status read once. The queue records which bucket each
// index is in. A transition is applied by re-reading the runner's current
// status and moving the index there, so duplicate, stale and reordered
// events all converge on the same membership.
//
// Overall Status:
// A memo over the Initial, Pending, Error and Success counts derives one
// status by priority: Initial, then Pending, then Error, otherwise Success.
// An empty queue is Success. Disabled runners never affect it.
//
// Batches:
// Execute, Retry and Cancel act on a snapshot of one bucket taken at call
// time. Execute and Retry launch every selected runner concurrently and join
// according to Config.Join (fail-fast by default).
//
// CONCURRENCY:
//
// Runners settle on their own goroutines, so bucket membership is guarded by
// one mutex. Counts are re-derived from the bucket (Counter.Recount) after
// the mutex is released, so listeners on counts or the overall status may
// call back into the queue. Once the queue is quiescent every count equals
// its bucket size.
//
// LIFECYCLE:
//
// Empty discards runners and resets buckets but, by contract, neither
// unsubscribes nor disposes the discarded runners; their subscriptions are
// left attached but no longer affect the queue. Clear unsubscribes and
// disposes them, then empties. Dispose tears everything down. Calling any
// operation after Dispose is a programmer error.
package queue
