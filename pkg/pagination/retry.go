package pagination

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/tweetfilter/pkg/client"
)

// Prometheus metrics for page retries.
var (
	pageRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tweetfilter_page_retries_total",
		Help: "Total number of page fetch retry attempts",
	})

	pageRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tweetfilter_page_retry_backoff_seconds",
		Help:    "Backoff duration before page fetch retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	pageRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tweetfilter_page_retry_exhausted_total",
		Help: "Total number of page fetches that failed after all attempts",
	})
)

// RetryConfig holds the configuration for page fetch retries.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts including the first one.
	// 1 disables retries.
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// NoRetry returns a configuration that fails on the first error.
func NoRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       1,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// DefaultRetryConfig returns a retrying configuration for callers that opt in.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retryWithBackoff runs fn until it succeeds, returns a non-temporary error,
// or MaxAttempts is reached. Backoff is exponential with ±20% jitter.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Page fetch succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !client.IsTemporary(err) || attempt >= cfg.MaxAttempts {
			break
		}

		pageRetriesTotal.Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		pageRetryBackoffSeconds.Observe(jitter.Seconds())

		logger.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying page fetch after backoff")

		timer := time.NewTimer(jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (retry aborted: %v)", lastErr, ctx.Err())
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	if cfg.MaxAttempts > 1 && client.IsTemporary(lastErr) {
		pageRetryExhaustedTotal.Inc()
		logger.Warn().
			Err(lastErr).
			Int("max_attempts", cfg.MaxAttempts).
			Msg("Page fetch retry attempts exhausted")
	}

	return lastErr
}
