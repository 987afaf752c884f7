package command

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for chat_commands_total.
const (
	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomeMalformed = "malformed"
	outcomeUnknown   = "unknown"
)

var (
	// cmdTotal counts requests by command and outcome. Unknown command names
	// are folded into command="unknown" to keep cardinality bounded.
	cmdTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_commands_total",
			Help: "Total number of chat commands handled.",
		},
		[]string{"command", "outcome"},
	)

	// cmdLat records dispatch time including the storage wait.
	cmdLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_command_duration_seconds",
			Help:    "Duration of chat commands in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
)

func init() {
	prometheus.MustRegister(cmdTotal, cmdLat)
}
