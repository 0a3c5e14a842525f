package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reader/constants"
)

func TestObserveOutcome(t *testing.T) {
	m := newPipelineMetrics(prometheus.NewRegistry(), false)

	m.ObserveOutcome(constants.FileStatusProcessed)
	m.ObserveOutcome(constants.FileStatusProcessed)
	m.ObserveOutcome(constants.FileStatusFailedBackend)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.files.WithLabelValues("PROCESSED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.files.WithLabelValues("FAILED_BACKEND")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.files.WithLabelValues("SKIPPED_DUPLICATE")))
	assert.Equal(t, len(constants.AllFileStatuses), testutil.CollectAndCount(m.files))
}

func TestObserveStageAndGauges(t *testing.T) {
	m := newPipelineMetrics(prometheus.NewRegistry(), false)

	m.ObserveStage("load", 150*time.Millisecond)
	m.ObserveStage("extract", 2*time.Second)
	assert.Equal(t, 2, testutil.CollectAndCount(m.stageDuration))

	m.ObserveUpload()
	m.SetLiveSessions(3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sessions))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveOutcome(constants.FileStatusProcessed)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `invoice_files_processed_total{status="PROCESSED"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
