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
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestRecordBatch(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordBatch(StatusCompleted, 2*time.Second)
	m.RecordBatch(StatusCompleted, time.Second)
	m.RecordBatch(StatusFailed, time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.batchesTotal.WithLabelValues(StatusCompleted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.batchesTotal.WithLabelValues(StatusFailed)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.batchDurationSeconds))
}

func TestRecordRowsAndSources(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRows(7, 2)
	m.RecordRows(1, 0)
	assert.Equal(t, float64(8), testutil.ToFloat64(m.rowsTotal.WithLabelValues(RowValid)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.rowsTotal.WithLabelValues(RowInvalid)))

	tests := []struct {
		name   string
		record func(string)
		vec    *prometheus.CounterVec
	}{
		{"classification", m.RecordClassification, m.classificationsTotal},
		{"factor resolution", m.RecordFactorResolution, m.factorResolutionsTotal},
		{"report", m.RecordReport, m.reportsTotal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.record("a")
			tt.record("a")
			tt.record("b")
			assert.Equal(t, float64(2), testutil.ToFloat64(tt.vec.WithLabelValues("a")))
			assert.Equal(t, float64(1), testutil.ToFloat64(tt.vec.WithLabelValues("b")))
		})
	}
}

func TestRecordEmissions(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordEmissions(1, 80.5)
	m.RecordEmissions(1, 0)
	m.RecordEmissions(3, 12)

	assert.InDelta(t, 80.5, testutil.ToFloat64(m.emissionsKgTotal.WithLabelValues("1")), 1e-9)
	assert.InDelta(t, 12, testutil.ToFloat64(m.emissionsKgTotal.WithLabelValues("3")), 1e-9)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordBatch(StatusCompleted, time.Second)
		m.RecordRows(1, 1)
		m.RecordClassification("ai")
		m.RecordFactorResolution("stored")
		m.RecordEmissions(2, 1)
		m.RecordReport("completed")
		m.RecordHTTPRequest(http.MethodGet, "/healthz", http.StatusOK, time.Millisecond)
	})
}

func TestHandler(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordHTTPRequest(http.MethodGet, "/api/uploads/:id", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `carbon_http_requests_total{code="200",method="GET",route="/api/uploads/:id"} 1`)
}

func TestDoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := New(registry)
	require.NoError(t, err)

	_, err = New(registry)
	assert.Error(t, err)
}
