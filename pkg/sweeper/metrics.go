package sweeper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// sweepRuns counts sweep cycles.
	sweepRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "restcache_sweep_runs_total",
			Help: "Total number of refresh sweep cycles",
		},
	)

	// sweepEntries counts processed pending entries by result.
	sweepEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restcache_sweep_entries_total",
			Help: "Total number of pending entries processed by sweep result",
		},
		[]string{"result"}, // "refreshed", "failed", "corrupt_args"
	)

	// sweepRetries counts replay retry attempts.
	sweepRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "restcache_sweep_retries_total",
			Help: "Total number of replay retry attempts",
		},
	)

	// sweepDuration observes sweep cycle duration.
	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "restcache_sweep_duration_seconds",
			Help:    "Duration of refresh sweep cycles in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)
)
