package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/restcache/rest-cache/pkg/store"
)

var (
	// ErrCorruptPayload indicates a stored payload could not be decoded.
	// The entry is treated as a miss and overwritten by the next
	// successful capture.
	ErrCorruptPayload = errors.New("corrupt cache payload")
)

// FailureMode controls what a capture does with a non-2xx response.
type FailureMode int

const (
	// FailureMetadataOnly records the failure (status, timing, expiry)
	// while preserving any previously cached successful payload.
	FailureMetadataOnly FailureMode = iota

	// FailureSkip writes nothing on a non-2xx response.
	FailureSkip
)

// Config holds the engine configuration. All policy state is explicit here;
// there is no process-wide mutable configuration.
type Config struct {
	// Store is the persistence layer. Required.
	Store *store.Store

	// Policy decides cacheability.
	Policy Policy

	// Expiry maps response statuses to lifetimes.
	Expiry ExpiryPolicy

	// FailureMode controls non-2xx capture behavior.
	FailureMode FailureMode

	// Now returns the current time; nil means time.Now. Tests override it.
	Now func() time.Time
}

// Engine is the request-time decision point of the caching layer. It exposes
// the two hookpoints the host wires around its HTTP pipeline:
// OnBeforeRequest (interception) and OnAfterRequest (response capture).
type Engine struct {
	store       *store.Store
	policy      Policy
	expiry      ExpiryPolicy
	failureMode FailureMode
	now         func() time.Time
	logger      zerolog.Logger
}

// New creates an interception engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:       cfg.Store,
		policy:      cfg.Policy,
		expiry:      cfg.Expiry,
		failureMode: cfg.FailureMode,
		now:         now,
		logger:      log.With().Str("component", "cache-engine").Logger(),
	}, nil
}

// OnBeforeRequest is the interception hookpoint. Given the URL and arguments
// of an outbound call it either short-circuits with a cached (possibly
// stale) response, or returns ok=false to signal that the real request
// should proceed.
//
// Store failures and corrupt payloads degrade to a miss: caching is never a
// point of failure for the primary request path.
func (e *Engine) OnBeforeRequest(ctx context.Context, rawURL string, args Args) (*Response, bool) {
	if !e.policy.IsCacheable(args, rawURL) {
		return nil, false
	}
	// a replace request forces a passthrough even on a fresh hit
	if args.Cache.Replace {
		return nil, false
	}

	key := Key(rawURL)
	logger := e.logger.With().Str("key", key).Logger()

	entry, err := e.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		cacheMisses.Inc()
		return nil, false
	}
	if err != nil {
		cacheErrors.WithLabelValues("lookup").Inc()
		logger.Warn().Err(err).Msg("Cache lookup failed, passing through")
		return nil, false
	}

	stale := entry.Expired(e.now())
	if stale && !entry.PendingUpdate {
		e.markPending(ctx, key, args, logger)
	}

	if len(entry.Payload) == 0 {
		cacheMisses.Inc()
		return nil, false
	}

	res, err := DecodeResponse(entry.Payload)
	if err != nil {
		cacheErrors.WithLabelValues("decode").Inc()
		logger.Error().Err(err).Msg("Stored payload is corrupt, passing through")
		return nil, false
	}

	freshness := "fresh"
	if stale {
		freshness = "stale"
	}
	cacheHits.WithLabelValues(freshness).Inc()
	logger.Debug().
		Str("freshness", freshness).
		Int("status_code", res.Status()).
		Msg("Serving cached response")
	return res, true
}

// markPending flags the entry for background refresh, stashing the current
// call's arguments for the sweeper. It must not block serving a response,
// so failures are only logged.
func (e *Engine) markPending(ctx context.Context, key string, args Args, logger zerolog.Logger) {
	encoded, err := EncodeArgs(args)
	if err != nil {
		cacheErrors.WithLabelValues("mark_pending").Inc()
		logger.Error().Err(err).Msg("Could not encode args for refresh")
		return
	}
	marked, err := e.store.MarkPending(ctx, key, encoded, e.now().UTC().Format(store.DateFormat))
	if err != nil {
		cacheErrors.WithLabelValues("mark_pending").Inc()
		logger.Warn().Err(err).Msg("Could not flag entry for refresh")
		return
	}
	if marked {
		pendingMarked.Inc()
		logger.Debug().Msg("Flagged stale entry for background refresh")
	}
}

// OnAfterRequest is the response-capture hookpoint. The host wires it after
// the real call; it persists the exchange and returns the response
// unchanged.
func (e *Engine) OnAfterRequest(ctx context.Context, res *Response, args Args, rawURL string) *Response {
	return e.Capture(ctx, res, args, rawURL, true)
}

// Capture persists a completed HTTP exchange. With verifyCacheable the
// cacheability policy is re-evaluated before writing, so a response is never
// stored for a call that is not cacheable even if the interception check was
// skipped upstream. The sweeper captures with verifyCacheable=false: entries
// it replays were cacheable when first stored, and a later policy change
// must not leave them permanently stale.
//
// The response is always returned unchanged so the hook composes as a
// response-pipeline step.
func (e *Engine) Capture(ctx context.Context, res *Response, args Args, rawURL string, verifyCacheable bool) *Response {
	if res == nil {
		return nil
	}
	if verifyCacheable && !e.policy.IsCacheable(args, rawURL) {
		captures.WithLabelValues("rejected").Inc()
		return res
	}

	status := res.Status()
	storable := res.Storable()
	if !storable && e.failureMode == FailureSkip {
		captures.WithLabelValues("skipped").Inc()
		return res
	}

	key := Key(rawURL)
	domain, path := SplitURL(rawURL)

	entry := &store.Entry{
		Key:           key,
		CompositeKey:  CompositeKey(key, args.Cache.Tag),
		Domain:        domain,
		Path:          path,
		ExpiresAt:     e.expiry.ExpireAt(args.Cache.TTL, status),
		LastRequested: e.now().UTC().Format(store.DateFormat),
		Tag:           args.Cache.Tag,
		PendingUpdate: args.Cache.Update,
		// pending args only live while an entry awaits refresh
		PendingArgs: nil,
		StatusCode:  status,
	}

	logger := e.logger.With().
		Str("key", key).
		Str("domain", domain).
		Int("status_code", status).
		Logger()

	if storable {
		payload, err := res.Encode()
		if err != nil {
			cacheErrors.WithLabelValues("capture").Inc()
			logger.Error().Err(err).Msg("Could not encode response payload")
			return res
		}
		entry.Payload = payload
		if err := e.store.Upsert(ctx, entry); err != nil {
			cacheErrors.WithLabelValues("capture").Inc()
			logger.Warn().Err(err).Msg("Could not write cache entry")
			return res
		}
		captures.WithLabelValues("stored").Inc()
		logger.Debug().Time("expires_at", entry.ExpiresAt).Msg("Captured response")
		return res
	}

	// non-storable status: record the failure but keep the previous payload
	if err := e.store.UpsertMetadata(ctx, entry); err != nil {
		cacheErrors.WithLabelValues("capture").Inc()
		logger.Warn().Err(err).Msg("Could not record failed exchange")
		return res
	}
	captures.WithLabelValues("metadata").Inc()
	logger.Debug().Msg("Recorded failed exchange, payload preserved")
	return res
}
