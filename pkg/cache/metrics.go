package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks lookups answered from the store, by freshness.
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restcache_hits_total",
			Help: "Total number of lookups served from the cache",
		},
		[]string{"freshness"}, // "fresh", "stale"
	)

	// cacheMisses tracks lookups that fell through to the origin.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "restcache_misses_total",
			Help: "Total number of cache lookups that passed through to the origin",
		},
	)

	// cacheErrors tracks store and codec failures by operation.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restcache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "lookup", "mark_pending", "capture", "decode"
	)

	// captures tracks response captures by outcome.
	captures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restcache_captures_total",
			Help: "Total number of response captures by outcome",
		},
		[]string{"outcome"}, // "stored", "metadata", "skipped", "rejected"
	)

	// pendingMarked tracks stale entries flagged for background refresh.
	pendingMarked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "restcache_pending_marked_total",
			Help: "Total number of stale entries flagged for background refresh",
		},
	)
)
