// Package metrics defines the Prometheus metric collectors used by the search
// service and the LTR engine, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CacheBypassTotal     prometheus.Counter
	LTRRequestsTotal     *prometheus.CounterVec
	LTRErrorsTotal       *prometheus.CounterVec
	StoreCacheHits       *prometheus.CounterVec
	StoreCacheMisses     *prometheus.CounterVec
	FeatureLogEvents     *prometheus.CounterVec
	DocsIndexedTotal     prometheus.Counter
	IndexFlushesTotal    *prometheus.CounterVec
	SegmentCount         prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all collectors and registers them with reg. If
// reg is also a Gatherer (a *prometheus.Registry is), Handler serves it;
// otherwise Handler serves the default gatherer.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	gatherer, ok := reg.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	m := &Metrics{
		gatherer: gatherer,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, miss, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		CacheBypassTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_bypass_total",
				Help: "Results not cached because the query was not cacheable.",
			},
		),
		LTRRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ltr_requests_total",
				Help: "Total LTR query builds by query type (sltr, ltr, term_stat).",
			},
			[]string{"query"},
		),
		LTRErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ltr_request_errors_total",
				Help: "Failed LTR query builds by query type and error kind.",
			},
			[]string{"query", "kind"},
		),
		StoreCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ltr_store_cache_hits_total",
				Help: "Compiled feature store element cache hits by element type.",
			},
			[]string{"type"},
		),
		StoreCacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ltr_store_cache_misses_total",
				Help: "Compiled feature store element cache misses by element type.",
			},
			[]string{"type"},
		),
		FeatureLogEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ltr_feature_log_events_total",
				Help: "Feature log entries by outcome (published, dropped, failed).",
			},
			[]string{"outcome"},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents indexed.",
			},
		),
		IndexFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_flushes_total",
				Help: "Total index flush operations by status.",
			},
			[]string{"status"},
		),
		SegmentCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_segments",
				Help: "Number of searchable index segments.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheBypassTotal,
		m.LTRRequestsTotal,
		m.LTRErrorsTotal,
		m.StoreCacheHits,
		m.StoreCacheMisses,
		m.FeatureLogEvents,
		m.DocsIndexedTotal,
		m.IndexFlushesTotal,
		m.SegmentCount,
	)

	return m
}

// Handler returns the scrape handler for the registry m was created with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{
		ErrorLog:      slogAdapter{},
		ErrorHandling: promhttp.ContinueOnError,
	})
}
