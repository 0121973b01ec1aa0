// Package client provides the Tweets API page fetcher: one bounded GET per
// date window, decoded into tweets, with typed failures.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/tweetfilter/pkg/cache"
	"github.com/Sternrassler/tweetfilter/pkg/ratelimit"
	"github.com/Sternrassler/tweetfilter/pkg/tweet"
)

// TweetsPath is the fixed endpoint path of the Tweets API.
const TweetsPath = "/api/v1/Tweets"

// DefaultPageSize is the number of tweets the API returns for a full page.
const DefaultPageSize = 100

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Tweets API, e.g. "https://badapi.iqvia.io"
	BaseURL string

	// User-Agent header sent with every request
	UserAgent string

	// PageSize is the API's implicit page size. The client does not use it
	// itself; paginators configured without a page size read it via PageSize().
	PageSize int

	// Timeout bounds a single HTTP round trip
	Timeout time.Duration

	// Pacing shared by all callers of this client; 0 disables it
	RequestsPerSecond float64
	Burst             int

	// Redis enables the page cache when non-nil
	Redis *redis.Client
	Cache cache.Config
}

// DefaultConfig returns a configuration for the given API base URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "tweetfilter/0.1.0",
		PageSize:  DefaultPageSize,
		Timeout:   30 * time.Second,
		Burst:     1,
		Cache:     cache.DefaultConfig(),
	}
}

// Client fetches single pages from the Tweets API. It is safe for
// concurrent use; partition workers share one Client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	limiter    *ratelimit.Limiter
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// New creates a new Tweets API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page_size must be > 0 (got %d)", cfg.PageSize)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "tweets-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		limiter: ratelimit.NewLimiter(cfg.RequestsPerSecond, cfg.Burst, logger),
		config:  cfg,
		logger:  logger,
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis, cfg.Cache)
	}

	return c, nil
}

// PageSize returns the configured API page size.
func (c *Client) PageSize() int {
	return c.config.PageSize
}

// RateLimitState returns a snapshot of the client's request pacing.
func (c *Client) RateLimitState() ratelimit.State {
	return c.limiter.State()
}

// PageURL returns the request URL for window r.
func (c *Client) PageURL(r tweet.Range) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + TweetsPath
	u.RawQuery = pageQuery(r).Encode()
	return u.String()
}

func pageQuery(r tweet.Range) url.Values {
	return url.Values{
		"startDate": {tweet.FormatCursor(r.Start)},
		"endDate":   {tweet.FormatCursor(r.End)},
	}
}

// FetchPage performs one GET for window r and decodes the tweets it returns.
// Failures are *FetchError values; nothing is retried here.
func (c *Client) FetchPage(ctx context.Context, r tweet.Range) ([]tweet.Tweet, error) {
	start := time.Now()
	defer func() {
		apiRequestDuration.Observe(time.Since(start).Seconds())
	}()

	body, err := c.fetchBody(ctx, r)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			apiFetchErrorsTotal.WithLabelValues(string(fe.Kind)).Inc()
		}
		return nil, err
	}

	var tweets []tweet.Tweet
	if err := json.Unmarshal(body, &tweets); err != nil {
		apiFetchErrorsTotal.WithLabelValues(string(KindDecode)).Inc()
		c.logger.Warn().
			Err(err).
			Str("window", r.String()).
			Int("body_bytes", len(body)).
			Msg("Failed to decode page")
		return nil, decodeError(err)
	}

	apiRecordsReceivedTotal.Add(float64(len(tweets)))
	c.logger.Debug().
		Str("window", r.String()).
		Int("records", len(tweets)).
		Dur("duration", time.Since(start)).
		Msg("Fetched page")

	return tweets, nil
}

// fetchBody returns the raw page body, from cache when possible.
func (c *Client) fetchBody(ctx context.Context, r tweet.Range) ([]byte, error) {
	key := cache.Key{Path: TweetsPath, Query: pageQuery(r)}

	var cached *cache.Entry
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err == nil && !entry.IsExpired():
			cache.CacheHits.WithLabelValues("fresh").Inc()
			c.logger.Debug().Str("window", r.String()).Msg("Page served from cache")
			return entry.Data, nil
		case err == nil && entry.CanRevalidate():
			cached = entry
		case err != nil && !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("window", r.String()).Msg("Cache get error")
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, transportError(fmt.Errorf("wait for rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PageURL(r), nil)
	if err != nil {
		return nil, transportError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if cached != nil {
		cache.AddConditionalHeaders(req, cached)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiRequestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Warn().Err(err).Str("window", r.String()).Msg("HTTP request failed")
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	apiRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		cache.CacheHits.WithLabelValues("revalidated").Inc()
		expires := cache.ParseExpires(resp.Header, time.Now(), c.cache.DefaultTTL())
		if err := c.cache.Refresh(ctx, key, cached, expires); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cached page")
		}
		c.logger.Debug().Str("window", r.String()).Msg("304 Not Modified - using cached page")
		return cached.Data, nil
	}

	if !successStatus(resp) {
		_, _ = io.Copy(io.Discard, resp.Body)
		fe := badStatusError(resp)
		c.logger.Warn().
			Str("window", r.String()).
			Int("status", resp.StatusCode).
			Str("reason", fe.Reason).
			Msg("Tweets API returned error status")
		return nil, fe
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(fmt.Errorf("read response body: %w", err))
	}

	if c.cache != nil && resp.StatusCode == http.StatusOK {
		entry := cache.NewEntry(resp, body, c.cache.DefaultTTL())
		if err := c.cache.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache page")
		}
	}

	return body, nil
}

// successStatus reports whether resp is 2xx and carries the standard reason
// phrase for its code.
func successStatus(resp *http.Response) bool {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}
	want := http.StatusText(resp.StatusCode)
	return want == "" || reasonPhrase(resp) == want
}

// Close releases idle connections. The Redis client is owned by the caller.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient replaces the HTTP client, e.g. to install a custom transport.
// The configured Timeout is not applied to it.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
