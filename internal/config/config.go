// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the TCP
// listener, session limits, the SQLite storage lane, logging, the admin HTTP
// endpoint, and observability.
package config

import (
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings for the admin endpoint.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-chat-tcp")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LogConfig defines where and how logs are written.
type LogConfig struct {
	Level      string // debug|info|warn|error|fatal|panic
	Pretty     bool   // console writer instead of JSON
	File       string // optional rotated log file; empty writes to stdout
	MaxSizeMB  int    // rotate after this many megabytes
	MaxBackups int    // rotated files to keep
	MaxAgeDays int    // days to keep rotated files
}

// AdminConfig defines the optional HTTP endpoint serving health and metrics.
type AdminConfig struct {
	Enabled bool
	Port    string
	GinMode string // debug|release|test
	CORS    CORSConfig

	SwaggerEnabled bool // serve Swagger UI at /swagger/index.html

	// Per-client-IP request limit; /health runs through the storage lane.
	RateRPS   float64
	RateBurst int
}

// Config holds all configuration values for the application.
type Config struct {
	// Listener
	Host            string
	Port            string        // just the number
	IdleTimeout     time.Duration // read idle timeout per session; 0 disables
	WriteTimeout    time.Duration // deadline for writing one response
	MaxLineBytes    int           // longest accepted request line
	MaxConnections  int           // session worker pool size
	ShutdownTimeout time.Duration

	// Storage
	DBPath             string        // SQLite path
	QueueCapacity      int           // storage lane buffer
	SlowQueryThreshold time.Duration // statements slower than this are logged

	// Per-session rate limiting
	RateRPS   float64 // commands per second (0 disables)
	RateBurst int     // bucket size (>= 1)

	Log   LogConfig
	Admin AdminConfig

	// Observability
	OTEL OTELConfig
}

// Addr returns the TCP listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// AdminAddr returns the admin HTTP listen address.
func (c Config) AdminAddr() string {
	return net.JoinHostPort(c.Host, c.Admin.Port)
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Listener
		Host:            getenv("HOST", ""),
		Port:            getenv("PORT", "12345"),
		IdleTimeout:     getdur("IDLE_TIMEOUT", 5*time.Minute),
		WriteTimeout:    getdur("WRITE_TIMEOUT", 10*time.Second),
		MaxLineBytes:    getint("MAX_LINE_BYTES", 64<<10),
		MaxConnections:  getint("MAX_CONNECTIONS", 1024),
		ShutdownTimeout: getdur("SHUTDOWN_TIMEOUT", 10*time.Second),

		// Storage
		DBPath:             getenv("DB_PATH", "chat_app.db"),
		QueueCapacity:      getint("STORAGE_QUEUE_CAPACITY", 4096),
		SlowQueryThreshold: getdur("SLOW_QUERY_THRESHOLD", 200*time.Millisecond),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 20.0),
		RateBurst: getint("RATE_BURST", 40),

		Log: LogConfig{
			Level:      strings.ToLower(getenv("LOG_LEVEL", "info")),
			Pretty:     getbool("LOG_PRETTY", false),
			File:       getenv("LOG_FILE", ""),
			MaxSizeMB:  getint("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getint("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getint("LOG_MAX_AGE_DAYS", 28),
		},

		Admin: AdminConfig{
			Enabled: getbool("ADMIN_ENABLED", true),
			Port:    getenv("ADMIN_PORT", "9090"),
			GinMode: strings.ToLower(getenv("GIN_MODE", "release")),
			CORS: CORSConfig{
				AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
			},
			SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
			RateRPS:        getfloat("ADMIN_RATE_RPS", 5.0),
			RateBurst:      getint("ADMIN_RATE_BURST", 10),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-chat-tcp"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.Log.Level == "warning" {
		cfg.Log.Level = "warn"
	}
	switch cfg.Admin.GinMode {
	case "debug", "release", "test":
	default:
		cfg.Admin.GinMode = "release"
	}

	// --- validation ---
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if !validPort(cfg.Port) {
		return cfg, errors.New("PORT must be a number in [0,65535]")
	}
	if cfg.Admin.Enabled && !validPort(cfg.Admin.Port) {
		return cfg, errors.New("ADMIN_PORT must be a number in [0,65535]")
	}
	if cfg.IdleTimeout < 0 {
		return cfg, errors.New("IDLE_TIMEOUT must be >= 0")
	}
	if cfg.WriteTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("WRITE_TIMEOUT and SHUTDOWN_TIMEOUT must be positive durations")
	}
	if cfg.MaxLineBytes < 64 {
		return cfg, errors.New("MAX_LINE_BYTES must be >= 64")
	}
	if cfg.MaxConnections < 1 {
		return cfg, errors.New("MAX_CONNECTIONS must be >= 1")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.QueueCapacity < cfg.MaxConnections {
		return cfg, errors.New("STORAGE_QUEUE_CAPACITY must be >= MAX_CONNECTIONS")
	}
	if cfg.SlowQueryThreshold < 0 {
		return cfg, errors.New("SLOW_QUERY_THRESHOLD must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Admin.Enabled && (cfg.Admin.RateRPS <= 0 || cfg.Admin.RateBurst < 1) {
		return cfg, errors.New("ADMIN_RATE_RPS must be > 0 and ADMIN_RATE_BURST >= 1")
	}
	if cfg.Log.MaxSizeMB < 1 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		return cfg, errors.New("LOG_MAX_SIZE_MB must be >= 1 and LOG_MAX_BACKUPS/LOG_MAX_AGE_DAYS >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// validPort reports whether p is a decimal TCP port. Port 0 asks the kernel
// for an ephemeral port, which tests rely on.
func validPort(p string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(p))
	return err == nil && n >= 0 && n <= 65535
}
