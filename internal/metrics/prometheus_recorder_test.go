package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveTaskDuration("thread", 150*time.Millisecond)
	pr.IncTaskResult("thread", ResultSuccess)
	pr.IncTaskResult("thread", ResultSkipped)
	pr.SetPoolWorkers("thread", 4)
	pr.ObserveRunDuration(500 * time.Millisecond)
	pr.IncRunOutcome("success")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 5)
}

func TestWriteTextfileAndHandler(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncRunOutcome("failed")

	path := filepath.Join(t.TempDir(), "docweave.prom")
	require.NoError(t, WriteTextfile(path, reg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `docweave_run_outcomes_total{outcome="failed"} 1`)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "docweave_run_outcomes_total"))
}
