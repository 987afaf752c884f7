// Package httpapi wires the admin HTTP endpoint: health, Prometheus metrics
// and live server statistics, behind the shared middleware stack.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-chat-tcp/internal/config"
	_ "github.com/tbourn/go-chat-tcp/internal/http/docs"
	"github.com/tbourn/go-chat-tcp/internal/http/handlers"
	"github.com/tbourn/go-chat-tcp/internal/http/middleware"
)

// NewRouter returns a Gin engine serving the admin routes.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger
//  4. Recovery
//  5. Rate limiter (per client IP)
//  6. Metrics
//  7. gzip (promhttp compresses /metrics itself)
//  8. CORS and NoStore
func NewRouter(h *handlers.Handler, cfg config.AdminConfig, serviceName string, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	RegisterRoutes(r, h, cfg, serviceName, log)
	return r
}

// RegisterRoutes attaches the admin middleware and endpoints to r.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg config.AdminConfig, serviceName string, log zerolog.Logger) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(serviceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst).Handler())
	r.Use(middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsFor(cfg.CORS))
	r.Use(middleware.NoStore())

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

// corsFor allows any origin when none are configured, otherwise only the
// listed ones. The admin surface is read-only.
func corsFor(c config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cors.New(cc)
}
