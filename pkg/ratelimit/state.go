// Package ratelimit paces outgoing Tweets API requests so that parallel
// partition workers sharing one client stay under a configured request rate.
package ratelimit

import (
	"math"
	"time"
)

// State is a point-in-time view of a limiter.
type State struct {
	// Limit is the sustained request rate in requests per second.
	// Zero means pacing is disabled.
	Limit float64 `json:"limit"`

	// Burst is the number of requests allowed back to back.
	Burst int `json:"burst"`

	// Tokens is the number of requests that could be sent right now
	// without waiting. Negative while callers are queued.
	Tokens float64 `json:"tokens"`

	// ObservedAt is when the snapshot was taken.
	ObservedAt time.Time `json:"observed_at"`
}

// Enabled reports whether requests are paced at all.
func (s State) Enabled() bool {
	return s.Limit > 0 && !math.IsInf(s.Limit, 1)
}

// Saturated reports whether the next request would have to wait.
func (s State) Saturated() bool {
	return s.Enabled() && s.Tokens < 1
}

// NextSlotIn estimates how long the next request will wait.
// Returns 0 if a token is available or pacing is disabled.
func (s State) NextSlotIn() time.Duration {
	if !s.Saturated() {
		return 0
	}
	missing := 1 - s.Tokens
	return time.Duration(missing / s.Limit * float64(time.Second))
}
