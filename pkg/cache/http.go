package cache

import (
	"net/http"
	"time"
)

// NewEntry builds a cache entry from a response whose body has already been
// read into body. Expires falls back to now+defaultTTL when the header is
// missing or unparsable.
func NewEntry(resp *http.Response, body []byte, defaultTTL time.Duration) *Entry {
	now := time.Now()
	entry := &Entry{
		Data:       body,
		ETag:       resp.Header.Get("ETag"),
		StatusCode: resp.StatusCode,
		Expires:    ParseExpires(resp.Header, now, defaultTTL),
		CachedAt:   now,
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if ts, err := http.ParseTime(lm); err == nil {
			entry.LastModified = ts
		}
	}

	return entry
}

// ParseExpires reads the Expires header relative to now.
// A past Expires yields now (stale immediately, still revalidatable).
func ParseExpires(headers http.Header, now time.Time, defaultTTL time.Duration) time.Time {
	raw := headers.Get("Expires")
	if raw == "" {
		return now.Add(defaultTTL)
	}

	expires, err := http.ParseTime(raw)
	if err != nil {
		return now.Add(defaultTTL)
	}

	if expires.Before(now) {
		return now
	}
	return expires
}

// AddConditionalHeaders sets If-None-Match, or If-Modified-Since when no ETag
// is known, so the API can answer 304 for an unchanged page.
func AddConditionalHeaders(req *http.Request, entry *Entry) {
	if entry == nil || req == nil {
		return
	}

	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
	}
}
