package aggregate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tweetfilter_runs_total",
			Help: "Total number of retrieval runs by outcome",
		},
		[]string{"outcome"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tweetfilter_run_duration_seconds",
			Help:    "Duration of complete retrieval runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	partitionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tweetfilter_partition_duration_seconds",
			Help:    "Duration of single partition walks",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	partitionsFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tweetfilter_partitions_failed_total",
			Help: "Total number of partitions that failed",
		},
	)

	distinctTweetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tweetfilter_distinct_tweets_total",
			Help: "Total number of distinct tweets returned by retrieval runs",
		},
	)
)
