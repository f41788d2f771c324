// Package metrics provides the centralized Prometheus registry reference for
// the caching layer. Metrics are defined in their respective packages
// (cache, client, sweeper) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the caching layer.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - restcache_hits_total{freshness} (Counter): lookups served from the cache,
//     by freshness ("fresh", "stale")
//   - restcache_misses_total (Counter): lookups that passed through to the origin
//   - restcache_errors_total{operation} (Counter): store/codec failures by
//     operation ("lookup", "mark_pending", "capture", "decode")
//   - restcache_captures_total{outcome} (Counter): response captures by outcome
//     ("stored", "metadata", "skipped", "rejected")
//   - restcache_pending_marked_total (Counter): stale entries flagged for refresh
//
// Request Metrics (pkg/client):
//   - restcache_requests_total{result} (Counter): outbound requests by result
//     ("hit", "origin", "error")
//   - restcache_request_duration_seconds{result} (Histogram): request duration
//
// Sweep Metrics (pkg/sweeper):
//   - restcache_sweep_runs_total (Counter): sweep cycles
//   - restcache_sweep_entries_total{result} (Counter): pending entries processed
//     ("refreshed", "failed", "corrupt_args")
//   - restcache_sweep_retries_total (Counter): replay retry attempts
//   - restcache_sweep_duration_seconds (Histogram): sweep cycle duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(restcache_hits_total[5m])) /
//   (sum(rate(restcache_hits_total[5m])) + sum(rate(restcache_misses_total[5m])))
//
//   # Stale Serve Rate
//   rate(restcache_hits_total{freshness="stale"}[5m])
//
//   # Replay Failure Rate
//   rate(restcache_sweep_entries_total{result="failed"}[5m])
