package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger checks that the storage lane is alive by pushing a no-op through it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LaneStats exposes the storage lane counters.
type LaneStats interface {
	QueueDepth() int64
	Processed() uint64
}

// SessionStats exposes the TCP server's live session count.
type SessionStats interface {
	ActiveSessions() int64
}

// Deps are the collaborators of the admin handlers.
type Deps struct {
	Store    Pinger
	Lane     LaneStats
	Sessions SessionStats
	Started  time.Time

	// PingTimeout bounds /health; zero means 2s.
	PingTimeout time.Duration
}

// Handler serves /health and /stats.
type Handler struct {
	d   Deps
	now func() time.Time
}

// New returns a Handler over d.
func New(d Deps) *Handler {
	if d.PingTimeout <= 0 {
		d.PingTimeout = 2 * time.Second
	}
	return &Handler{d: d, now: time.Now}
}

// Health godoc
// @ID           health
// @Summary      Liveness of the storage lane
// @Description  Pushes a no-op through the storage lane. A stalled or full lane shows up as 503.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  handlers.ErrorResponse
// @Router       /health [get]
//
// Health answers 200 {"status":"ok"} once a ping has round-tripped through
// the storage lane, 503 otherwise. A full queue shows up here as a timeout.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.d.PingTimeout)
	defer cancel()

	if err := h.d.Store.Ping(ctx); err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeStorageUnavailable, err.Error())
		return
	}
	ok(c, gin.H{"status": "ok"})
}

// Stats is the body of GET /stats.
type Stats struct {
	ActiveSessions int64   `json:"active_sessions"`
	QueueDepth     int64   `json:"queue_depth"`
	ProcessedOps   uint64  `json:"processed_ops"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// Stats godoc
// @ID           stats
// @Summary      Server statistics
// @Description  Live counters; never touches the storage lane.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.Stats
// @Router       /stats [get]
func (h *Handler) Stats(c *gin.Context) {
	var s Stats
	if h.d.Sessions != nil {
		s.ActiveSessions = h.d.Sessions.ActiveSessions()
	}
	if h.d.Lane != nil {
		s.QueueDepth = h.d.Lane.QueueDepth()
		s.ProcessedOps = h.d.Lane.Processed()
	}
	if !h.d.Started.IsZero() {
		s.UptimeSeconds = h.now().Sub(h.d.Started).Seconds()
	}
	ok(c, s)
}
