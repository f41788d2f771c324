package sweeper

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig bounds replay attempts for a single entry within one sweep.
// An entry that still fails after the last attempt keeps its pending flag
// and is retried on the next sweep tick, so the sweep interval itself caps
// the effective backoff.
type RetryConfig struct {
	// MaxAttempts is the number of attempts including the first.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff growth.
	MaxBackoff time.Duration

	// BackoffMultiplier is the exponential growth factor.
	BackoffMultiplier float64
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 1 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2.0
	}
	return c
}

// withBackoff executes fn with exponential backoff and jitter, respecting
// context cancellation.
func (s *Sweeper) withBackoff(ctx context.Context, logger zerolog.Logger, fn func() error) error {
	var lastErr error
	backoff := s.retry.InitialBackoff

	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Debug().Int("attempt", attempt).Msg("Replay succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if attempt >= s.retry.MaxAttempts {
			break
		}

		// ±20% jitter to avoid replaying a herd in lockstep
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		sweepRetries.Inc()
		logger.Debug().
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Err(err).
			Msg("Replay attempt failed, backing off")

		select {
		case <-ctx.Done():
			return fmt.Errorf("replay cancelled: %w", ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * s.retry.BackoffMultiplier)
		if backoff > s.retry.MaxBackoff {
			backoff = s.retry.MaxBackoff
		}
	}

	return fmt.Errorf("replay failed after %d attempts: %w", s.retry.MaxAttempts, lastErr)
}
