// Package metrics provides Prometheus instrumentation for the ingestion pipeline
// and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carbon"

// Histogram bucket layouts.
const (
	bucketStart10ms  = 0.01
	bucketStart100ms = 0.1
	bucketFactor2    = 2
	bucketCount12    = 12
)

// Batch and row outcome labels.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	RowValid   = "valid"
	RowInvalid = "invalid"
)

// Metrics holds every collector the application exports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	batchesTotal           *prometheus.CounterVec
	batchDurationSeconds   prometheus.Histogram
	rowsTotal              *prometheus.CounterVec
	classificationsTotal   *prometheus.CounterVec
	factorResolutionsTotal *prometheus.CounterVec
	emissionsKgTotal       *prometheus.CounterVec
	reportsTotal           *prometheus.CounterVec
	httpRequestsTotal      *prometheus.CounterVec
	httpDurationSeconds    *prometheus.HistogramVec
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Upload batches that reached a terminal state",
		},
		[]string{"status"},
	)

	m.batchDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_duration_seconds",
		Help:      "Time from batch submission to its terminal state",
		Buckets:   prometheus.ExponentialBuckets(bucketStart100ms, bucketFactor2, bucketCount12),
	})

	m.rowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Parsed input rows by outcome",
		},
		[]string{"outcome"},
	)

	m.classificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classification results by producing classifier",
		},
		[]string{"source"},
	)

	m.factorResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "factor_resolutions_total",
			Help:      "Emission factor lookups by resolution path",
		},
		[]string{"path"},
	)

	m.emissionsKgTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emissions_kg_total",
			Help:      "Kilograms of CO2e written to the ledger",
		},
		[]string{"scope"},
	)

	m.reportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Generated reports by status",
		},
		[]string{"status"},
	)

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)

	m.httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.ExponentialBuckets(bucketStart10ms, bucketFactor2, bucketCount12),
		},
		[]string{"method", "route"},
	)
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.batchesTotal,
		m.batchDurationSeconds,
		m.rowsTotal,
		m.classificationsTotal,
		m.factorResolutionsTotal,
		m.emissionsKgTotal,
		m.reportsTotal,
		m.httpRequestsTotal,
		m.httpDurationSeconds,
	}
}

// Describe implements the Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// RecordBatch records a batch reaching status after elapsed.
func (m *Metrics) RecordBatch(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(status).Inc()
	m.batchDurationSeconds.Observe(elapsed.Seconds())
}

// RecordRows adds valid and invalid row counts.
func (m *Metrics) RecordRows(valid, invalid int) {
	if m == nil {
		return
	}
	m.rowsTotal.WithLabelValues(RowValid).Add(float64(valid))
	m.rowsTotal.WithLabelValues(RowInvalid).Add(float64(invalid))
}

// RecordClassification counts one classification by source.
func (m *Metrics) RecordClassification(source string) {
	if m == nil {
		return
	}
	m.classificationsTotal.WithLabelValues(source).Inc()
}

// RecordFactorResolution counts one factor lookup by path.
func (m *Metrics) RecordFactorResolution(path string) {
	if m == nil {
		return
	}
	m.factorResolutionsTotal.WithLabelValues(path).Inc()
}

// RecordEmissions adds kilograms of CO2e for a scope number.
func (m *Metrics) RecordEmissions(scope int, kg float64) {
	if m == nil || kg <= 0 {
		return
	}
	m.emissionsKgTotal.WithLabelValues(strconv.Itoa(scope)).Add(kg)
}

// RecordReport counts a generated report by status.
func (m *Metrics) RecordReport(status string) {
	if m == nil {
		return
	}
	m.reportsTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDurationSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
