package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for Tweets API requests.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetapi_requests_total",
		Help: "Total Tweets API page requests by HTTP status",
	}, []string{"status"})

	apiRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tweetapi_request_duration_seconds",
		Help:    "Tweets API page request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	apiFetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetapi_fetch_errors_total",
		Help: "Total failed page fetches by error kind",
	}, []string{"kind"})

	apiRecordsReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tweetapi_records_received_total",
		Help: "Total tweets decoded from page responses, duplicates included",
	})
)
