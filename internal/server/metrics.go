package server

import "github.com/prometheus/client_golang/prometheus"

var (
	// sessionsActive gauges sessions currently being served.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Current number of active chat sessions.",
		},
	)

	// sessionsTotal counts sessions that reached a worker.
	sessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_total",
			Help: "Total number of chat sessions served.",
		},
	)

	// sessionsRejected counts connections turned away because the pool was full.
	sessionsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_rejected_total",
			Help: "Total number of connections rejected with Server busy.",
		},
	)
)

func init() {
	prometheus.MustRegister(sessionsActive, sessionsTotal, sessionsRejected)
}
