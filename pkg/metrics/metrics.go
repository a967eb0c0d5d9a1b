// Package metrics defines the Prometheus metric collectors used by the
// query service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the query service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	QueryResultsCount    prometheus.Histogram
	ResolverExpansion    prometheus.Histogram
	RefsetCacheHits      prometheus.Counter
	RefsetCacheMisses    prometheus.Counter
	PageCacheHits        prometheus.Counter
	PageCacheMisses      prometheus.Counter
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	m := &Metrics{
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
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "constraint_queries_total",
				Help: "Total constraint queries by outcome (ok, zero_result, not_found, invalid, error).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "constraint_query_duration_seconds",
				Help:    "Constraint query latency in seconds by operation.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "constraint_query_results",
				Help:    "Total match count per executed query.",
				Buckets: prometheus.ExponentialBuckets(1, 10, 7),
			},
		),
		ResolverExpansion: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "resolver_expansion_clauses",
				Help:    "Number of id clauses produced per internal-function expansion.",
				Buckets: prometheus.ExponentialBuckets(1, 10, 6),
			},
		),
		RefsetCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refset_cache_hits_total",
			Help: "Refset display-name cache hits.",
		}),
		RefsetCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refset_cache_misses_total",
			Help: "Refset display-name cache misses.",
		}),
		PageCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "page_cache_hits_total",
			Help: "Result page cache hits.",
		}),
		PageCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "page_cache_misses_total",
			Help: "Result page cache misses.",
		}),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.ResolverExpansion,
		m.RefsetCacheHits,
		m.RefsetCacheMisses,
		m.PageCacheHits,
		m.PageCacheMisses,
	)
	return m
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
