package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the CDR analytics service.
type Metrics struct {
	registry             *prometheus.Registry
	requestsTotal        *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	chainsBuiltTotal     prometheus.Counter
	chainSegments        prometheus.Histogram
	exportsTotal         *prometheus.CounterVec
	statsCacheHitsTotal  prometheus.Counter
	statsCacheMissTotal  prometheus.Counter
	authFailuresTotal    prometheus.Counter
	errorsTotal          prometheus.Counter
}

// New creates and registers the Prometheus collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cdr_http_requests_total",
		Help: "Total number of HTTP requests received, by route and status code",
	}, []string{"route", "code"})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cdr_http_request_duration_seconds",
		Help:    "HTTP request latency, by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	chainsBuiltTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdr_chains_built_total",
		Help: "Total number of call chains reconstructed",
	})
	chainSegments := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cdr_chain_segments",
		Help:    "Number of CDR segments per reconstructed chain",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
	})
	exportsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cdr_exports_total",
		Help: "Total number of call-log exports, by format",
	}, []string{"format"})
	statsCacheHitsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdr_stats_cache_hits_total",
		Help: "Total number of statistics cache hits",
	})
	statsCacheMissTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdr_stats_cache_misses_total",
		Help: "Total number of statistics cache misses",
	})
	authFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdr_auth_failures_total",
		Help: "Total number of failed authentication attempts",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cdr_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		requestDuration,
		chainsBuiltTotal,
		chainSegments,
		exportsTotal,
		statsCacheHitsTotal,
		statsCacheMissTotal,
		authFailuresTotal,
		errorsTotal,
	)

	return &Metrics{
		registry:            registry,
		requestsTotal:       requestsTotal,
		requestDuration:     requestDuration,
		chainsBuiltTotal:    chainsBuiltTotal,
		chainSegments:       chainSegments,
		exportsTotal:        exportsTotal,
		statsCacheHitsTotal: statsCacheHitsTotal,
		statsCacheMissTotal: statsCacheMissTotal,
		authFailuresTotal:   authFailuresTotal,
		errorsTotal:         errorsTotal,
	}
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(route, code string, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(route, code).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveChain records one reconstructed call chain and its segment count.
func (m *Metrics) ObserveChain(segmentCount int) {
	m.chainsBuiltTotal.Inc()
	m.chainSegments.Observe(float64(segmentCount))
}

// IncExport increments the export counter for the given format.
func (m *Metrics) IncExport(format string) {
	m.exportsTotal.WithLabelValues(format).Inc()
}

// IncStatsCacheHit increments the statistics cache hit counter.
func (m *Metrics) IncStatsCacheHit() {
	m.statsCacheHitsTotal.Inc()
}

// IncStatsCacheMiss increments the statistics cache miss counter.
func (m *Metrics) IncStatsCacheMiss() {
	m.statsCacheMissTotal.Inc()
}

// IncAuthFailure increments the failed authentication counter.
func (m *Metrics) IncAuthFailure() {
	m.authFailuresTotal.Inc()
}

// IncErrors increments the error response counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
