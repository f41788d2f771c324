package cache

import (
	"net/http"
	"net/url"
	"strings"
)

// Policy decides whether a call may be cached at all. It is evaluated both
// before issuing a request (to decide whether to consult the store) and
// before persisting a response, so a response is never stored for a call
// that is not cacheable even if the first check was skipped.
type Policy struct {
	// Exclusions lists hosts that must never be cached.
	Exclusions []string

	// FilterExclusions, when set, can adjust the exclusion list at
	// evaluation time (runtime overrides from the host).
	FilterExclusions func([]string) []string
}

// NewPolicy builds a Policy from a comma-separated exclusion list.
// Malformed or empty entries degrade to "not excluded".
func NewPolicy(exclusions string) Policy {
	return Policy{Exclusions: SplitExclusions(exclusions)}
}

// SplitExclusions parses a comma-separated host list, dropping empty entries.
func SplitExclusions(s string) []string {
	var hosts []string
	for _, part := range strings.Split(s, ",") {
		if host := strings.TrimSpace(part); host != "" {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// IsCacheable reports whether the call described by args and url may be
// served from or stored into the cache. Rules are evaluated in order and the
// first match wins.
func (p Policy) IsCacheable(args Args, rawURL string) bool {
	// file downloads and explicit opt-outs are never cached
	if args.Filename != "" || args.Cache.Exclude {
		return false
	}

	if !strings.EqualFold(args.Method, http.MethodGet) {
		return false
	}

	exclusions := p.Exclusions
	if p.FilterExclusions != nil {
		exclusions = p.FilterExclusions(exclusions)
	}
	if host := hostOf(rawURL); host != "" {
		for _, excluded := range exclusions {
			if strings.EqualFold(host, excluded) {
				return false
			}
		}
	}

	if args.ForceCheck {
		return false
	}

	return true
}

// hostOf extracts the hostname from a URL, tolerating missing schemes.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Host == "" {
		// retry as a schemeless URL
		if u2, err2 := url.Parse("//" + rawURL); err2 == nil {
			return u2.Hostname()
		}
		return ""
	}
	return u.Hostname()
}
