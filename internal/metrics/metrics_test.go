package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveItem("success", "", 120*time.Millisecond)
	m.ObserveItem("failed", "decode_error", time.Millisecond)
	m.ObserveItem("failed", "decode_error", time.Millisecond)
	m.CacheResult(true)
	m.CacheResult(false)
	m.CacheResult(false)
	m.Retry()
	m.BatchStarted()
	m.BatchStarted()
	m.BatchFinished("completed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemsProcessed.WithLabelValues("success", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ItemsProcessed.WithLabelValues("failed", "decode_error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetryAttempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesFinished.WithLabelValues("completed")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveItem("success", "", time.Second)
		m.ObserveEngine("fixture", "ok", time.Second)
		m.CacheResult(true)
		m.Retry()
		m.BatchStarted()
		m.BatchFinished("completed")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveEngine("fixture", "ok", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `invoice_ocr_engine_calls_total{engine="fixture",outcome="ok"} 1`))
}
