package services

import "github.com/prometheus/client_golang/prometheus"

var (
	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotskill_spotify_requests_total",
			Help: "Spotify Web API requests by endpoint and status class",
		},
		[]string{"method", "endpoint", "status"},
	)
	apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spotskill_spotify_request_duration_seconds",
			Help:    "Spotify Web API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	tokenRefreshSuccess = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spotskill_oauth_refresh_success_total",
			Help: "Successful OAuth token refreshes",
		},
	)
	tokenRefreshFailure = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spotskill_oauth_refresh_failure_total",
			Help: "Failed OAuth token refreshes",
		},
	)
	tokenValid = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spotskill_oauth_token_valid",
			Help: "OAuth access token validity (1=valid, 0=invalid)",
		},
	)
)

// MetricsCollectors returns collectors for the Spotify client.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		apiRequests,
		apiLatency,
		tokenRefreshSuccess,
		tokenRefreshFailure,
		tokenValid,
	}
}
