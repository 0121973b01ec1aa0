// Package metrics exposes the Prometheus registry used by tweetfilter.
// All metrics are defined in their respective packages (client, pagination,
// aggregate, cache, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides the HTTP handler and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by tweetfilter.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics handler for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - tweetapi_requests_total{status} (Counter): Requests by HTTP status or "network_error"
//   - tweetapi_request_duration_seconds (Histogram): Page fetch duration
//   - tweetapi_fetch_errors_total{kind} (Counter): Failures by kind (transport, bad_status, decode)
//   - tweetapi_records_received_total (Counter): Tweets decoded from pages
//
// Rate Limit Metrics (pkg/ratelimit):
//   - tweetapi_rate_limit_throttles_total (Counter): Requests that had to wait for a slot
//   - tweetapi_rate_limit_wait_seconds (Histogram): Time spent waiting for a slot
//
// Cache Metrics (pkg/cache):
//   - tweetapi_cache_hits_total{state} (Counter): Hits by state (fresh, revalidated)
//   - tweetapi_cache_misses_total (Counter): Cache misses
//   - tweetapi_cache_stored_bytes_total (Counter): Bytes written to Redis
//   - tweetapi_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pagination Metrics (pkg/pagination):
//   - tweetfilter_pages_fetched_total (Counter): Pages fetched by paginators
//   - tweetfilter_page_duplicates_dropped_total (Counter): Tweets dropped while merging pages
//   - tweetfilter_page_retries_total (Counter): Page fetch retry attempts
//   - tweetfilter_page_retry_backoff_seconds (Histogram): Backoff before retries
//   - tweetfilter_page_retry_exhausted_total (Counter): Page fetches that exhausted retries
//
// Run Metrics (pkg/aggregate):
//   - tweetfilter_runs_total{outcome} (Counter): Runs by outcome (success, degraded, failed, cancelled)
//   - tweetfilter_run_duration_seconds (Histogram): Duration of complete runs
//   - tweetfilter_partition_duration_seconds (Histogram): Duration of partition walks
//   - tweetfilter_partitions_failed_total (Counter): Failed partitions
//   - tweetfilter_distinct_tweets_total (Counter): Distinct tweets returned
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(tweetapi_cache_hits_total[5m])) /
//   (sum(rate(tweetapi_cache_hits_total[5m])) + sum(rate(tweetapi_cache_misses_total[5m])))
//
//   # API Error Rate
//   sum(rate(tweetapi_fetch_errors_total[5m])) by (kind)
//
//   # P95 Page Latency
//   histogram_quantile(0.95, rate(tweetapi_request_duration_seconds_bucket[5m]))
//
//   # Pages per Run
//   rate(tweetfilter_pages_fetched_total[1h]) / rate(tweetfilter_runs_total[1h])
