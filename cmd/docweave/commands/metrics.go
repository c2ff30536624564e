package commands

import (
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docweave/internal/metrics"
)

// textfileExporter collects one build's metrics for node-exporter's textfile collector.
type textfileExporter struct {
	path     string
	reg      *prom.Registry
	recorder *metrics.PrometheusRecorder
}

func newTextfileExporter(path string) *textfileExporter {
	reg := prom.NewRegistry()
	return &textfileExporter{path: path, reg: reg, recorder: metrics.NewPrometheusRecorder(reg)}
}

func (e *textfileExporter) write() error { return metrics.WriteTextfile(e.path, e.reg) }
