package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ingredients",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ingredients",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.3, 1},
	}, []string{"method", "path"})

	CatalogRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ingredients",
		Name:      "catalog_records",
		Help:      "Number of valid ingredient records loaded into the catalog.",
	})

	CatalogDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ingredients",
		Name:      "catalog_dropped_total",
		Help:      "Catalog records dropped at load time because they failed validation.",
	})

	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ingredients",
		Name:      "queries_total",
		Help:      "Catalog queries by operation and result (hit, empty, not_found, error).",
	}, []string{"op", "result"})

	ResolverBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ingredients",
		Name:      "resolver_batches_total",
		Help:      "Batch fetches issued by the client resolver by result.",
	}, []string{"result"})

	ResolverCoalescedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ingredients",
		Name:      "resolver_coalesced_total",
		Help:      "Identifiers that attached to an in-flight batch instead of fetching again.",
	})

	ResolverCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ingredients",
		Name:      "resolver_cache_total",
		Help:      "Resolution cache lookups by result (hit, miss).",
	}, []string{"result"})

	SearchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ingredients",
		Name:      "search_requests_total",
		Help:      "Typeahead search requests by outcome (applied, stale, failed).",
	}, []string{"outcome"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CatalogRecords,
		CatalogDroppedTotal,
		QueriesTotal,
		ResolverBatchesTotal,
		ResolverCoalescedTotal,
		ResolverCacheTotal,
		SearchRequestsTotal,
	)
}
