package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/tweetfilter/pkg/logging"
	"github.com/Sternrassler/tweetfilter/pkg/tweet"
)

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tweetfilter_pages_fetched_total",
		Help: "Total number of pages fetched by paginators",
	})

	duplicatesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tweetfilter_page_duplicates_dropped_total",
		Help: "Total number of tweets dropped as duplicates while merging pages",
	})
)

var (
	// ErrPageLimit is returned when a window needs more than Config.MaxPages pages.
	ErrPageLimit = errors.New("page limit reached")

	// ErrCursorStalled is returned when Config.StallLimit consecutive full
	// pages fail to move the cursor forward.
	ErrCursorStalled = errors.New("cursor stalled")
)

// DefaultPageSize is used when neither Config nor the fetcher name a page size.
const DefaultPageSize = 100

// Config holds paginator configuration
type Config struct {
	// PageSize is the API page size; a shorter page ends the walk.
	// 0 takes the size from a fetcher implementing PageSizer, else DefaultPageSize.
	PageSize int

	// MaxPages bounds the number of page fetches per window.
	MaxPages int

	// StallLimit is the number of consecutive full pages whose last stamp
	// equals the current cursor before giving up.
	StallLimit int

	// Timeout per page fetch
	Timeout time.Duration

	// Retry policy for temporary fetch failures
	Retry RetryConfig
}

// DefaultConfig returns the default paginator configuration
func DefaultConfig() Config {
	return Config{
		MaxPages:   100000,
		StallLimit: 3,
		Timeout:    15 * time.Second,
		Retry:      NoRetry(),
	}
}

// PageFetcher fetches one page of tweets for a window.
type PageFetcher interface {
	FetchPage(ctx context.Context, r tweet.Range) ([]tweet.Tweet, error)
}

// PageSizer is implemented by fetchers that know the API page size.
type PageSizer interface {
	PageSize() int
}

// Stats describes one completed walk.
type Stats struct {
	Pages    int           // pages fetched
	Fetched  int           // tweets received, duplicates included
	Kept     int           // distinct tweets
	Duration time.Duration // wall time of the walk
}

// Result is the outcome of a successful walk.
type Result struct {
	Tweets []tweet.Tweet
	Stats  Stats
}

// WindowError reports the page at which a walk failed.
type WindowError struct {
	Window tweet.Range // window of the failing request
	Page   int         // 1-based page number
	Err    error
}

// Error implements the error interface.
func (e *WindowError) Error() string {
	return fmt.Sprintf("page %d of window %s: %v", e.Page, e.Window, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *WindowError) Unwrap() error {
	return e.Err
}

// Paginator walks windows through a PageFetcher. A Paginator holds no state
// between calls and can be shared.
type Paginator struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewPaginator creates a new paginator
func NewPaginator(fetcher PageFetcher, config Config) *Paginator {
	defaults := DefaultConfig()
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
		if ps, ok := fetcher.(PageSizer); ok && ps.PageSize() > 0 {
			config.PageSize = ps.PageSize()
		}
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}
	if config.StallLimit <= 0 {
		config.StallLimit = defaults.StallLimit
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = defaults.Retry
	}

	return &Paginator{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("paginator"),
	}
}

// WithLogger returns a copy of p logging to logger.
func (p *Paginator) WithLogger(logger zerolog.Logger) *Paginator {
	cp := *p
	cp.logger = logger
	return &cp
}

// Collect fetches every page of r and returns the distinct tweets in the
// order first seen. On any fetch failure the tweets collected so far are
// discarded and a *WindowError is returned.
func (p *Paginator) Collect(ctx context.Context, r tweet.Range) (*Result, error) {
	start := time.Now()
	window := r
	acc := tweet.NewSet(p.config.PageSize)
	stats := Stats{}
	stalls := 0

	for {
		if stats.Pages >= p.config.MaxPages {
			p.logger.Warn().
				Str("window", r.String()).
				Int("pages", stats.Pages).
				Msg("Page limit reached, aborting window")
			return nil, &WindowError{Window: window, Page: stats.Pages + 1, Err: ErrPageLimit}
		}

		page, err := p.fetch(ctx, window)
		if err != nil {
			return nil, &WindowError{Window: window, Page: stats.Pages + 1, Err: err}
		}

		stats.Pages++
		stats.Fetched += len(page)
		pagesFetchedTotal.Inc()

		if len(page) == 0 {
			break
		}

		added := acc.AddAll(page)
		duplicatesDroppedTotal.Add(float64(len(page) - added))

		p.logger.Debug().
			Str("window", window.String()).
			Int("page", stats.Pages).
			Int("received", len(page)).
			Int("new", added).
			Msg("Merged page")

		if len(page) < p.config.PageSize {
			break
		}

		// Advance to the last received tweet, even if it was a duplicate.
		cursor := page[len(page)-1].Stamp
		if tweet.FormatCursor(cursor) == tweet.FormatCursor(window.Start) {
			stalls++
			if stalls >= p.config.StallLimit {
				p.logger.Warn().
					Str("window", window.String()).
					Int("stalls", stalls).
					Msg("Cursor did not advance on full pages, aborting window")
				return nil, &WindowError{Window: window, Page: stats.Pages, Err: ErrCursorStalled}
			}
		} else {
			stalls = 0
		}
		window = window.WithStart(cursor)
	}

	stats.Kept = acc.Len()
	stats.Duration = time.Since(start)

	p.logger.Debug().
		Str("window", r.String()).
		Int("pages", stats.Pages).
		Int("fetched", stats.Fetched).
		Int("kept", stats.Kept).
		Dur("duration", stats.Duration).
		Msg("Window complete")

	return &Result{Tweets: acc.Items(), Stats: stats}, nil
}

// fetch runs one page request under the per-page timeout and retry policy.
func (p *Paginator) fetch(ctx context.Context, window tweet.Range) ([]tweet.Tweet, error) {
	var page []tweet.Tweet
	err := retryWithBackoff(ctx, p.config.Retry, p.logger, func() error {
		pageCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()

		var err error
		page, err = p.fetcher.FetchPage(pageCtx, window)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}
