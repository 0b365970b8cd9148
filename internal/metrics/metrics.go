// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gostremio",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by route and status code.",
	}, []string{"route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gostremio",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20, 60},
	}, []string{"route"})

	IndexerRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gostremio",
		Name:      "indexer_requests_total",
		Help:      "Indexer searches by indexer and result status.",
	}, []string{"indexer", "status"})

	IndexerRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gostremio",
		Name:      "indexer_request_duration_seconds",
		Help:      "Indexer search duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"indexer"})

	DebridRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gostremio",
		Name:      "debrid_requests_total",
		Help:      "Debrid API calls by provider, operation and outcome.",
	}, []string{"provider", "operation", "outcome"})

	TorrentInfoFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gostremio",
		Name:      "torrent_info_fetch_total",
		Help:      "Technical info fetches by outcome.",
	}, []string{"outcome"})

	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gostremio",
		Name:      "cache_hits_total",
		Help:      "Cache store hits by backend.",
	}, []string{"backend"})

	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gostremio",
		Name:      "cache_misses_total",
		Help:      "Cache store misses by backend.",
	}, []string{"backend"})

	LockWaitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gostremio",
		Name:      "lock_wait_seconds",
		Help:      "Time spent waiting for a per-key lock.",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	}, []string{"lock"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		IndexerRequestsTotal,
		IndexerRequestDuration,
		DebridRequestsTotal,
		TorrentInfoFetchTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		LockWaitDuration,
	)
}
