package metrics

import (
	"testing"
	"time"
)

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveTaskDuration("serial", time.Second)
	r.IncTaskResult("serial", ResultFailed)
	r.SetPoolWorkers("serial", 1)
	r.ObserveRunDuration(time.Second)
	r.IncRunOutcome("canceled")
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var p *PrometheusRecorder
	p.ObserveTaskDuration("thread", time.Millisecond)
	p.IncTaskResult("thread", ResultIgnored)
	p.SetPoolWorkers("thread", 2)
	p.ObserveRunDuration(time.Millisecond)
	p.IncRunOutcome("success")
}
