package metrics

import "github.com/prometheus/client_golang/prometheus"

// Sync engine Prometheus metrics.
var (
	CollectionSyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolsync",
			Name:      "collection_syncs_total",
			Help:      "Total per-collection sync operations",
		},
		[]string{"collection", "outcome"}, // outcome: "synced" / "failed" / "skipped" / "payload"
	)

	CollectionSyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "toolsync",
			Name:      "collection_sync_duration_seconds",
			Help:      "Per-collection sync duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"collection"},
	)

	SweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolsync",
			Name:      "sweeps_total",
			Help:      "Total background sweep runs",
		},
		[]string{"result"}, // "ok" / "partial"
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "toolsync",
			Name:      "sweep_duration_seconds",
			Help:      "Background sweep duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
	)

	SweepSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolsync",
			Name:      "sweep_skipped_total",
			Help:      "Tools skipped during sweeps",
		},
		[]string{"reason"}, // "backoff" / "retries_exhausted"
	)
)

var syncMetricsRegistered bool

// RegisterSyncMetrics registers Prometheus sync metrics. Must be called once from main.
func RegisterSyncMetrics() {
	if syncMetricsRegistered {
		return
	}
	prometheus.MustRegister(CollectionSyncsTotal)
	prometheus.MustRegister(CollectionSyncDuration)
	prometheus.MustRegister(SweepsTotal)
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(SweepSkippedTotal)
	syncMetricsRegistered = true
}
