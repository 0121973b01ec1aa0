package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	tweetapiThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tweetapi_rate_limit_throttles_total",
		Help: "Total number of requests delayed by the client-side rate limiter",
	})

	tweetapiThrottleSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tweetapi_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting for the client-side rate limiter",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})
)

// Limiter paces requests. A nil *Limiter never delays.
// Limiter is safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewLimiter creates a limiter allowing rps requests per second with the given
// burst. It returns nil when rps <= 0, which disables pacing.
func NewLimiter(rps float64, burst int, logger zerolog.Logger) *Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate limiter: burst %d cannot admit a request", l.limiter.Burst())
	}

	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	tweetapiThrottlesTotal.Inc()
	tweetapiThrottleSeconds.Observe(delay.Seconds())
	l.logger.Debug().
		Dur("wait", delay).
		Msg("Request throttled by rate limiter")

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// State returns a snapshot of the limiter. A nil limiter reports a disabled state.
func (l *Limiter) State() State {
	now := time.Now()
	if l == nil {
		return State{ObservedAt: now}
	}
	return State{
		Limit:      float64(l.limiter.Limit()),
		Burst:      l.limiter.Burst(),
		Tokens:     l.limiter.TokensAt(now),
		ObservedAt: now,
	}
}
