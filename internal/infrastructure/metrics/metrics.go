// Package metrics exposes the Prometheus collectors for the report engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all field-metrics collectors.
	Namespace = "field_metrics"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Report metrics
	ReportsTotal          *prometheus.CounterVec
	ReportDurationSeconds *prometheus.HistogramVec
	ReportRows            *prometheus.HistogramVec

	// Record store metrics
	FetchesTotal         *prometheus.CounterVec
	FetchDurationSeconds *prometheus.HistogramVec

	// Batch scheduler metrics
	BatchItemsTotal *prometheus.CounterVec
	BatchInFlight   prometheus.Gauge

	// Export metrics
	ExportsTotal *prometheus.CounterVec
	ExportBytes  *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initReportMetrics(factory)
	m.initFetchMetrics(factory)
	m.initBatchMetrics(factory)
	m.initExportMetrics(factory)
	m.initHTTPMetrics(factory)

	return m
}

func (m *Metrics) initReportMetrics(factory promauto.Factory) {
	m.ReportsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "report",
			Name:      "generated_total",
			Help:      "Total number of report computations by view and outcome",
		},
		[]string{"view", "outcome"},
	)

	m.ReportDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "report",
			Name:      "duration_seconds",
			Help:      "Time spent assembling a report",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"view"},
	)

	m.ReportRows = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "report",
			Name:      "rows",
			Help:      "Number of listing rows returned per report",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"view"},
	)
}

func (m *Metrics) initFetchMetrics(factory promauto.Factory) {
	m.FetchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "fetches_total",
			Help:      "Total number of record store reads by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	m.FetchDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of record store reads",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
}

func (m *Metrics) initBatchMetrics(factory promauto.Factory) {
	m.BatchItemsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Batch sub-fetches by outcome (ok, retried, degraded)",
		},
		[]string{"outcome"},
	)

	m.BatchInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "batch",
			Name:      "in_flight",
			Help:      "Number of batch sub-fetches currently running",
		},
	)
}

func (m *Metrics) initExportMetrics(factory promauto.Factory) {
	m.ExportsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "export",
			Name:      "rendered_total",
			Help:      "Total number of exports by format and outcome",
		},
		[]string{"format", "outcome"},
	)

	m.ExportBytes = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "export",
			Name:      "bytes",
			Help:      "Size of rendered export documents",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"format"},
	)
}

func (m *Metrics) initHTTPMetrics(factory promauto.Factory) {
	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// ObserveReport records one report computation.
func (m *Metrics) ObserveReport(view, outcome string, rows int, d time.Duration) {
	if m == nil {
		return
	}
	m.ReportsTotal.WithLabelValues(view, outcome).Inc()
	m.ReportDurationSeconds.WithLabelValues(view).Observe(d.Seconds())
	if outcome == OutcomeOK {
		m.ReportRows.WithLabelValues(view).Observe(float64(rows))
	}
}

// ObserveFetch records one record store read.
func (m *Metrics) ObserveFetch(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(op, outcome).Inc()
	m.FetchDurationSeconds.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveBatchItem records the outcome of one batch sub-fetch.
func (m *Metrics) ObserveBatchItem(outcome string) {
	if m == nil {
		return
	}
	m.BatchItemsTotal.WithLabelValues(outcome).Inc()
}

// BatchStarted and BatchFinished track in-flight sub-fetches.
func (m *Metrics) BatchStarted() {
	if m == nil {
		return
	}
	m.BatchInFlight.Inc()
}

func (m *Metrics) BatchFinished() {
	if m == nil {
		return
	}
	m.BatchInFlight.Dec()
}

// ObserveExport records one rendered export.
func (m *Metrics) ObserveExport(format, outcome string, bytes int64) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(format, outcome).Inc()
	if outcome == OutcomeOK {
		m.ExportBytes.WithLabelValues(format).Observe(float64(bytes))
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRetried  = "retried"
	OutcomeDegraded = "degraded"
)
