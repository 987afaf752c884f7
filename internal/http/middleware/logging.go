// Package middleware contains the Gin middleware used by the admin endpoint.
//
// This file provides request correlation, structured access logging and
// panic recovery:
//
//   - RequestID() reuses an incoming X-Request-ID or generates a UUID and
//     echoes it on the response.
//   - Logger(l) writes one access log line per request through l and stores
//     a request-scoped child logger in the Gin context.
//   - Recovery(l) turns panics into a JSON 500 carrying the request ID.
//
// Recommended order: RequestID, Logger, Recovery.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// loggerKey is the Gin context key for the request-scoped logger.
	loggerKey = "logger"
)

// RequestID attaches (or propagates) a correlation identifier per request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes a structured access log for each request. The level follows
// the outcome: error for 5xx or recorded Gin errors, warn for 4xx, debug for
// everything else so scrapes of /metrics and /health stay quiet at info.
func Logger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		l := base.With().
			Str("component", "admin").
			Str("request_id", c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Str("remote_ip", c.ClientIP()).
			Logger()
		c.Set(loggerKey, &l)

		c.Next()

		ev := l.With().
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			ev.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Debug().Msg("request")
		}
	}
}

// Recovery intercepts panics, logs the stack and answers a JSON 500 unless a
// response was already started.
func Recovery(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid := c.GetString(requestIDKey)
				base.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", rid).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header(requestIDHeader, rid)
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": rid,
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger set by Logger, or a disabled
// logger when there is none.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := zerolog.Nop()
	return &l
}

// routePath is the matched route, or the raw path when nothing matched.
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}
