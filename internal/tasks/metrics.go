package tasks

import "github.com/prometheus/client_golang/prometheus"

var (
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotskill_cache_refresh_total",
			Help: "Snapshot refreshes by result",
		},
		[]string{"result"},
	)

	refreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spotskill_cache_refresh_duration_seconds",
			Help:    "Time spent building a snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	snapshotItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spotskill_cache_snapshot_items",
			Help: "Items held by the current snapshot",
		},
		[]string{"kind"},
	)

	snapshotTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spotskill_cache_snapshot_timestamp_seconds",
			Help: "Unix time the current snapshot was fetched",
		},
	)
)

// MetricsCollectors returns the collectors owned by this package.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{refreshTotal, refreshDuration, snapshotItems, snapshotTimestamp}
}
