// Package pool runs batches of tasks on a fixed set of workers.
//
// A batch returns its results in submission order. Finalizers of a task are
// dispatched as soon as their parent completes, and a task's final finalizer
// waits for its siblings. Every failure in a batch is reported, not only the
// first.
package pool
