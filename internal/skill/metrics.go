package skill

import "github.com/prometheus/client_golang/prometheus"

var (
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotskill_commands_total",
			Help: "Handled commands by action and result",
		},
		[]string{"action", "result"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spotskill_command_duration_seconds",
			Help:    "Time from dequeue to published response",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"action"},
	)
	ignoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotskill_commands_ignored_total",
			Help: "Messages not handled by the skill, by reason",
		},
		[]string{"reason"},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spotskill_queue_depth",
			Help: "Commands waiting for the worker",
		},
	)
	droppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spotskill_queue_dropped_total",
			Help: "Commands dropped because the queue was full",
		},
	)
)

// MetricsCollectors returns collectors for command handling.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		commandsTotal,
		commandDuration,
		ignoredTotal,
		queueDepth,
		droppedTotal,
	}
}
