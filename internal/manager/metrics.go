package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	slotsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "slotd",
			Name:      "slots",
			Help:      "Number of slots per lifecycle state.",
		},
		[]string{"state"},
	)
	queueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "slotd",
			Name:      "rotation_queue_length",
			Help:      "Profiles waiting for a slot.",
		},
	)
	evictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotd",
			Name:      "evictions_total",
			Help:      "Slot evictions by reason.",
		},
		[]string{"reason"},
	)
	launchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotd",
			Name:      "launches_total",
			Help:      "Worker launches by result (ready, failed, timeout).",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(slotsGauge, queueLength, evictionsTotal, launchesTotal)
}
