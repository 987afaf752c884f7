package store

import "github.com/prometheus/client_golang/prometheus"

var (
	// storageOps counts completed lane operations by operation name and outcome
	// (ok, constraint, error).
	storageOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_storage_ops_total",
			Help: "Total number of storage lane operations.",
		},
		[]string{"op", "outcome"},
	)

	// storageLat records execution time on the lane, excluding queue wait.
	storageLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_storage_op_duration_seconds",
			Help:    "Duration of storage lane operations in seconds.",
			Buckets: []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"op"},
	)

	// storageWait records how long an operation sat in the queue.
	storageWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_storage_queue_wait_seconds",
			Help:    "Time operations spend queued before the lane runs them.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// queueDepth gauges operations admitted but not yet started.
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_storage_queue_depth",
			Help: "Number of storage operations waiting in the lane.",
		},
	)
)

func init() {
	prometheus.MustRegister(storageOps, storageLat, storageWait, queueDepth)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsConstraint(err):
		return "constraint"
	default:
		return "error"
	}
}
