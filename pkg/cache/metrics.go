package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks pages served from cache by freshness state
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tweetapi_cache_hits_total",
			Help: "Total number of Tweets API pages served from cache",
		},
		[]string{"state"}, // "fresh", "revalidated"
	)

	// CacheMisses tracks lookups that found nothing
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tweetapi_cache_misses_total",
			Help: "Total number of Tweets API page cache misses",
		},
	)

	// CacheStoredBytes tracks bytes written to Redis
	CacheStoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tweetapi_cache_stored_bytes_total",
			Help: "Total bytes of page data written to the cache",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tweetapi_cache_errors_total",
			Help: "Total number of page cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "refresh", "delete"
	)
)
