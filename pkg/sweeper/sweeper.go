// Package sweeper implements the background refresh sweep: entries flagged
// stale-and-pending-update are re-fetched from their origin and driven back
// through response capture.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/restcache/rest-cache/pkg/cache"
	"github.com/restcache/rest-cache/pkg/store"
)

// DefaultInterval is the sweep cadence when none is configured.
const DefaultInterval = 5 * time.Minute

// Fetcher issues the real network call for a replay, bypassing the
// interception lookup entirely. The caching client's Fetch satisfies this.
type Fetcher interface {
	Fetch(ctx context.Context, url string, args cache.Args) (*cache.Response, error)
}

// Config holds the sweeper configuration.
type Config struct {
	// Store is scanned for pending entries. Required.
	Store *store.Store

	// Engine captures replayed responses. Required.
	Engine *cache.Engine

	// Fetcher performs the forced-through origin calls. Required.
	Fetcher Fetcher

	// Retry bounds per-entry replay attempts within one sweep.
	// Zero values take defaults.
	Retry RetryConfig
}

// Sweeper scans for pending entries and replays them. Each entry is
// processed independently: a failed replay is logged and left flagged for
// the next sweep cycle, it never aborts the sweep.
type Sweeper struct {
	store   *store.Store
	engine  *cache.Engine
	fetcher Fetcher
	retry   RetryConfig
	logger  zerolog.Logger
}

// New creates a sweeper.
func New(cfg Config) (*Sweeper, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	return &Sweeper{
		store:   cfg.Store,
		engine:  cfg.Engine,
		fetcher: cfg.Fetcher,
		retry:   cfg.Retry.withDefaults(),
		logger:  log.With().Str("component", "sweeper").Logger(),
	}, nil
}

// Start runs sweeps on the given interval until ctx is done. This is the
// scheduler registration point; hosts with their own scheduler can call
// RunSweep directly instead.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s.logger.Info().Dur("interval", interval).Msg("Starting refresh sweep loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Refresh sweep loop stopped")
			return
		case <-ticker.C:
			if err := s.RunSweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Sweep failed")
			}
		}
	}
}

// RunSweep executes one scan-and-replay cycle. It returns an error only when
// the pending scan itself fails; individual replay failures are logged and
// the entries stay flagged for the next cycle.
func (s *Sweeper) RunSweep(ctx context.Context) error {
	started := time.Now()
	sweepRuns.Inc()

	entries, err := s.store.Pending(ctx)
	if err != nil {
		return fmt.Errorf("scan pending entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	s.logger.Debug().Int("pending", len(entries)).Msg("Replaying pending entries")

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.replay(ctx, entry)
	}

	sweepDuration.Observe(time.Since(started).Seconds())
	return nil
}

// replay re-issues the original call for one pending entry and captures the
// result. Capture runs without the cacheability re-check: the entry was
// cacheable when first stored, and a policy change since then must not leave
// it permanently stale.
func (s *Sweeper) replay(ctx context.Context, entry *store.Entry) {
	logger := s.logger.With().Str("key", entry.Key).Str("domain", entry.Domain).Logger()

	// entries flagged at capture time carry no stored args; replay those as
	// a plain GET rather than treating the empty blob as corrupt
	var args cache.Args
	if len(entry.PendingArgs) > 0 {
		var err error
		args, err = cache.DecodeArgs(entry.PendingArgs)
		if err != nil {
			sweepEntries.WithLabelValues("corrupt_args").Inc()
			logger.Error().Err(err).Msg("Stored replay args are corrupt, skipping entry")
			return
		}
	}
	// the replayed call must not immediately re-flag itself
	args.Cache.Update = false
	if args.Method == "" {
		args.Method = "GET"
	}

	url := entry.URL()
	var res *cache.Response
	err := s.withBackoff(ctx, logger, func() error {
		var fetchErr error
		res, fetchErr = s.fetcher.Fetch(ctx, url, args)
		return fetchErr
	})
	if err != nil {
		// leave pending_update set so the next sweep retries
		sweepEntries.WithLabelValues("failed").Inc()
		logger.Warn().Err(err).Msg("Replay failed, entry stays flagged")
		return
	}

	s.engine.Capture(ctx, res, args, url, false)
	sweepEntries.WithLabelValues("refreshed").Inc()
	logger.Debug().Int("status_code", res.Status()).Msg("Replayed pending entry")
}
