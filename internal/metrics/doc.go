// Package metrics provides build and pool metrics behind a Recorder interface.
//
// Components default to NoopRecorder and accept a real recorder through a
// WithRecorder option:
//
//	reg := prometheus.NewRegistry()
//	p, err := pool.New(pool.KindThread, 8, pool.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// Long-running commands expose the registry with HTTPHandler; one-shot builds
// can write it out once with WriteTextfile.
package metrics
