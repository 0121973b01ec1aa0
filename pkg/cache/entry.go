package cache

import (
	"time"
)

// Entry is a cached page response.
type Entry struct {
	// Data is the raw response body
	Data []byte `json:"data"`

	// ETag for If-None-Match revalidation
	ETag string `json:"etag,omitempty"`

	// LastModified for If-Modified-Since revalidation
	LastModified time.Time `json:"last_modified,omitempty"`

	// Expires is when the entry stops being fresh
	Expires time.Time `json:"expires"`

	// StatusCode of the cached response
	StatusCode int `json:"status_code"`

	// CachedAt is when the entry was stored
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry is no longer fresh.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL returns the time until the entry expires, 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// CanRevalidate reports whether a conditional request can be made for e.
func (e *Entry) CanRevalidate() bool {
	return e.ETag != "" || !e.LastModified.IsZero()
}
