package cache

import (
	"encoding/json"
	"net/http"
	"time"
)

// Options are the request-scoped cache options a caller may attach to an
// outbound call.
type Options struct {
	// Exclude opts this call out of caching entirely.
	Exclude bool `json:"exclude,omitempty"`

	// TTL overrides the expiry configuration for this call only.
	TTL *TTLConfig `json:"expires,omitempty"`

	// Tag is a free-form grouping label used for bulk invalidation
	// and autocomplete.
	Tag string `json:"tag,omitempty"`

	// Update flags the captured entry for background refresh.
	Update bool `json:"update,omitempty"`

	// Replace forces a passthrough to the origin even when a fresh
	// entry exists, so tooling can refresh an entry on demand.
	Replace bool `json:"replace,omitempty"`
}

// Args mirrors the arguments the host application hands to its HTTP
// transport. The sweeper serializes Args alongside a stale entry so the
// original call can be replayed later.
type Args struct {
	// Method of the request. Empty is treated as non-GET (not cacheable).
	Method string `json:"method,omitempty"`

	// Header carries request headers to send on passthrough and replay.
	Header http.Header `json:"header,omitempty"`

	// Timeout bounds the real network call. Zero means the client default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Filename, when set, marks the call as a file download. Downloads
	// are never cached.
	Filename string `json:"filename,omitempty"`

	// ForceCheck bypasses the cache for this call, forcing a live request.
	ForceCheck bool `json:"force_check,omitempty"`

	// Cache holds the cache-layer options.
	Cache Options `json:"cache,omitempty"`
}

// GetArgs returns Args for a plain GET request with the given options.
func GetArgs(opts Options) Args {
	return Args{Method: http.MethodGet, Cache: opts}
}

// EncodeArgs serializes Args for storage next to a pending entry.
func EncodeArgs(args Args) ([]byte, error) {
	return json.Marshal(args)
}

// DecodeArgs restores Args stored by EncodeArgs.
func DecodeArgs(data []byte) (Args, error) {
	var args Args
	err := json.Unmarshal(data, &args)
	return args, err
}
