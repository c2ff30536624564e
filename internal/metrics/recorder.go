package metrics

import "time"

// ResultLabel enumerates task result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultIgnored ResultLabel = "ignored" // failed with ignore_errors set
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped" // target already current
)

// Recorder defines observability hooks for pool and build-run metrics.
// Implementations must be safe for concurrent use from pool workers.
type Recorder interface {
	ObserveTaskDuration(pool string, d time.Duration)
	IncTaskResult(pool string, result ResultLabel)
	SetPoolWorkers(pool string, n int)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome string) // outcome: success|failed|canceled
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTaskDuration(string, time.Duration) {}
func (NoopRecorder) IncTaskResult(string, ResultLabel)         {}
func (NoopRecorder) SetPoolWorkers(string, int)                {}
func (NoopRecorder) ObserveRunDuration(time.Duration)          {}
func (NoopRecorder) IncRunOutcome(string)                      {}
