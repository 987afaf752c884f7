package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// adminReqs counts requests by method, route path and status code.
	adminReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_admin_requests_total",
			Help: "Total number of admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// adminLat records request duration by method and route path.
	adminLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_admin_request_duration_seconds",
			Help:    "Duration of admin HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// adminInflight gauges requests currently being handled.
	adminInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_admin_requests_inflight",
			Help: "Current number of in-flight admin HTTP requests.",
		},
	)
)

func init() {
	prometheus.MustRegister(adminReqs, adminLat, adminInflight)
}

// Metrics instruments admin requests. The path label is the registered route
// so unmatched URLs cannot inflate cardinality beyond the raw 404 paths.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		adminInflight.Inc()
		defer adminInflight.Dec()

		c.Next()

		path := routePath(c)
		method := c.Request.Method
		adminReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		adminLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
