// Package cache provides a Redis-backed cache for raw Tweets API pages.
//
// Page responses are keyed by request path and window bounds, so a repeated
// run over the same date range can skip the network for pages it already
// holds. Only raw page bodies are cached; retrieval results are never stored.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, cache.DefaultConfig())
//
//	key := cache.Key{
//		Path:  "/api/v1/Tweets",
//		Query: url.Values{"startDate": {"2016-01-01T00:00:00Z"}, "endDate": {"2017-01-01T00:00:00Z"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	switch {
//	case errors.Is(err, cache.ErrCacheMiss):
//		// fetch from the API, then manager.Set(ctx, key, entry)
//	case entry.IsExpired() && entry.CanRevalidate():
//		cache.AddConditionalHeaders(req, entry) // API may answer 304
//	}
//
// # Freshness
//
// An entry is fresh until its Expires time, taken from the response's
// Expires header or Config.DefaultTTL when absent. Expired entries are kept
// in Redis for Config.StaleFor so they can be revalidated with If-None-Match
// or If-Modified-Since; a 304 answer extends them with Refresh.
//
// # Metrics
//
//   - tweetapi_cache_hits_total{state="fresh|revalidated"}
//   - tweetapi_cache_misses_total
//   - tweetapi_cache_stored_bytes_total
//   - tweetapi_cache_errors_total{operation}
package cache
