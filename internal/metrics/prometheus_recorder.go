package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "docweave"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	taskDuration *prom.HistogramVec
	taskResults  *prom.CounterVec
	poolWorkers  *prom.GaugeVec
	runDuration  prom.Histogram
	runOutcome   *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		taskDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of individual task jobs",
			Buckets:   prom.DefBuckets,
		}, []string{"pool"}),
		taskResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_results_total",
			Help:      "Task results by outcome",
		}, []string{"pool", "result"}),
		poolWorkers: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_workers",
			Help:      "Configured worker count per pool",
		}, []string{"pool"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total build run duration",
			Buckets:   prom.DefBuckets,
		}),
		runOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Build runs by final status",
		}, []string{"outcome"}),
	}
	reg.MustRegister(pr.taskDuration, pr.taskResults, pr.poolWorkers, pr.runDuration, pr.runOutcome)
	return pr
}

func (p *PrometheusRecorder) ObserveTaskDuration(pool string, d time.Duration) {
	if p == nil {
		return
	}
	p.taskDuration.WithLabelValues(pool).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTaskResult(pool string, result ResultLabel) {
	if p == nil {
		return
	}
	p.taskResults.WithLabelValues(pool, string(result)).Inc()
}

func (p *PrometheusRecorder) SetPoolWorkers(pool string, n int) {
	if p == nil {
		return
	}
	p.poolWorkers.WithLabelValues(pool).Set(float64(n))
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil {
		return
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}
