package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_requests_total",
			Help: "Total number of session service requests",
		},
		[]string{"method", "path"},
	)

	SessionRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_requests_in_flight",
			Help: "Number of session service requests currently being processed",
		},
	)

	SessionRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "session_request_duration_seconds",
			Help:    "Duration of session service requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
