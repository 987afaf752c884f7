// Package handlers implements the admin HTTP endpoints and the shared JSON
// error envelope.
//
// Example error response:
//
//	HTTP/1.1 503 Service Unavailable
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "storage_unavailable",
//	  "message": "storage lane not responding"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-tcp/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by every admin endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty"`
	// Stable, machine-readable code (see errors.go)
	Code    string `json:"code"`
	Message string `json:"message"`
}

// fail aborts the request with an ErrorResponse. Server errors are logged
// through the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("admin error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail for router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}
