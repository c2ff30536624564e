// Package task defines the unit of work executed by a pool: a job with its
// arguments, the files it produces and reads, and the finalizers that run
// once it succeeds.
package task
