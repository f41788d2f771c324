package cache

import "time"

// DefaultTTL is the ultimate fallback lifetime for a cached response when
// neither the request nor the policy resolves a more specific value.
const DefaultTTL = 600 * time.Second

// TTLConfig maps response status codes to lifetimes, in seconds. A scalar
// override (just Default set) adjusts only the fallback slot.
type TTLConfig struct {
	// Default is the lifetime in seconds for statuses without a
	// specific entry. Zero means "not set".
	Default int `json:"default,omitempty"`

	// PerStatus holds status-specific lifetimes in seconds.
	PerStatus map[int]int `json:"per_status,omitempty"`
}

// TTL builds a scalar TTLConfig overriding only the default slot.
func TTL(seconds int) *TTLConfig {
	return &TTLConfig{Default: seconds}
}

// ExpiryPolicy resolves a response status code to an absolute expiration
// timestamp. The built-in recommendations give error statuses a short
// lifetime and 410 Gone a very long one; both are overridable.
type ExpiryPolicy struct {
	// Recommended holds the policy's own per-status lifetimes.
	Recommended map[int]time.Duration

	// Default is the policy fallback lifetime.
	Default time.Duration

	// Now returns the current time; nil means time.Now.
	Now func() time.Time
}

// DefaultExpiryPolicy returns the recommended expiry configuration:
// client and server errors expire within minutes so transient failures are
// retried soon, 410 Gone is remembered for weeks, everything else lives
// for ten minutes.
func DefaultExpiryPolicy() ExpiryPolicy {
	return ExpiryPolicy{
		Recommended: map[int]time.Duration{
			400: 5 * time.Minute,
			401: 5 * time.Minute,
			404: 5 * time.Minute,
			410: 14 * 24 * time.Hour,
			500: 5 * time.Minute,
		},
		Default: DefaultTTL,
	}
}

// ExpireAt computes the absolute expiration for a response with the given
// status. Resolution order, most specific first: request per-status entry,
// request default, policy per-status recommendation, policy default.
func (p ExpiryPolicy) ExpireAt(cfg *TTLConfig, status int) time.Time {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return now().Add(p.resolve(cfg, status))
}

func (p ExpiryPolicy) resolve(cfg *TTLConfig, status int) time.Duration {
	if cfg != nil {
		if secs, ok := cfg.PerStatus[status]; ok && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if cfg.Default > 0 {
			return time.Duration(cfg.Default) * time.Second
		}
	}
	if ttl, ok := p.Recommended[status]; ok && ttl > 0 {
		return ttl
	}
	if p.Default > 0 {
		return p.Default
	}
	return DefaultTTL
}
