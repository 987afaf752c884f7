package middleware

import "github.com/gin-gonic/gin"

// NoStore marks every admin response as uncacheable and not sniffable.
// Health and stats are point-in-time values; a cached copy is wrong.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Cache-Control", "no-store")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		c.Next()
	}
}
