package cache

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
)

// compositeTagLen caps the slugged tag suffix of a composite key so the
// column stays index-friendly regardless of caller-supplied tag length.
const compositeTagLen = 32

// Key returns the cache fingerprint for a request URL: the hex md5 digest of
// the raw URL string. Uniqueness across realistic request volumes is the only
// requirement; this is not a security boundary.
func Key(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// CompositeKey combines a cache key with a truncated slug of the entry tag.
// It supports tag-scoped lookups without colliding with the primary key.
//
// Format: key + "+" + first 32 chars of slug(tag)
func CompositeKey(key, tag string) string {
	slug := Slugify(tag)
	if len(slug) > compositeTagLen {
		slug = slug[:compositeTagLen]
	}
	return key + "+" + slug
}

// Slugify lowercases a tag and strips everything outside [a-z0-9_-].
func Slugify(tag string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(tag) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitURL decomposes a URL into its domain part (scheme, credentials, host
// and port) and its path part (path, query and fragment). A URL without a
// scheme yields a domain of just host(+port). Unparseable input yields the
// whole string as the path.
func SplitURL(rawURL string) (domain, path string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", rawURL
	}

	if u.Scheme != "" {
		domain = u.Scheme + "://"
	}
	if u.User != nil {
		domain += u.User.String() + "@"
	}
	domain += u.Host

	path = u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		path += "#" + u.Fragment
	}
	return domain, path
}
