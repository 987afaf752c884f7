package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-tcp/internal/config"
	"github.com/tbourn/go-chat-tcp/internal/http/handlers"
)

type stubStore struct{ err error }

func (s stubStore) Ping(context.Context) error { return s.err }
func (stubStore) QueueDepth() int64            { return 0 }
func (stubStore) Processed() uint64            { return 5 }

type stubSessions struct{}

func (stubSessions) ActiveSessions() int64 { return 2 }

func newTestRouter(t *testing.T, cfg config.AdminConfig, pingErr error) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := stubStore{err: pingErr}
	h := handlers.New(handlers.Deps{Store: st, Lane: st, Sessions: stubSessions{}})
	return NewRouter(h, cfg, "test-svc", zerolog.Nop())
}

func get(r http.Handler, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthMetricsStats(t *testing.T) {
	r := newTestRouter(t, config.AdminConfig{RateRPS: 1000, RateBurst: 100}, nil)

	w := get(r, "/health", map[string]string{"Origin": "http://client.test"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("ACAO = %q; want *", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control = %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}

	w = get(r, "/metrics", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "chat_admin_requests_total") {
		t.Fatalf("GET /metrics code=%d", w.Code)
	}

	w = get(r, "/stats", nil)
	var s handlers.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("json: %v", err)
	}
	if s.ActiveSessions != 2 || s.ProcessedOps != 5 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestRouter_HealthUnavailable(t *testing.T) {
	r := newTestRouter(t, config.AdminConfig{RateRPS: 1000, RateBurst: 100}, errors.New("store: closed"))
	if w := get(r, "/health", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /health = %d; want 503", w.Code)
	}
}

func TestRouter_Fallbacks(t *testing.T) {
	r := newTestRouter(t, config.AdminConfig{RateRPS: 1000, RateBurst: 100}, nil)

	w := get(r, "/nope", nil)
	var e handlers.ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	if w.Code != http.StatusNotFound || e.Code != handlers.ErrCodeNotFound {
		t.Fatalf("GET /nope = %d %+v", w.Code, e)
	}

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health = %d; want 405", w.Code)
	}
}

func TestRouter_CORSAllowlist(t *testing.T) {
	cfg := config.AdminConfig{
		RateRPS:   1000,
		RateBurst: 100,
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://ok.example"}},
	}
	r := newTestRouter(t, cfg, nil)

	w := get(r, "/health", map[string]string{"Origin": "http://ok.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://ok.example" {
		t.Fatalf("allowed origin ACAO = %q", got)
	}
	w = get(r, "/health", map[string]string{"Origin": "http://evil.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("disallowed origin ACAO = %q", got)
	}
}

func TestRouter_RateLimited(t *testing.T) {
	r := newTestRouter(t, config.AdminConfig{RateRPS: 0.001, RateBurst: 1}, nil)

	if w := get(r, "/stats", nil); w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	w := get(r, "/stats", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d; want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
}

func TestRouter_Gzip(t *testing.T) {
	r := newTestRouter(t, config.AdminConfig{RateRPS: 1000, RateBurst: 100}, nil)
	w := get(r, "/stats", map[string]string{"Accept-Encoding": "gzip"})
	if got := w.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q; want gzip", got)
	}
}

func TestRouter_Swagger(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		want    int
	}{
		{"enabled", true, http.StatusOK},
		{"disabled", false, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(t, config.AdminConfig{RateRPS: 1000, RateBurst: 100, SwaggerEnabled: tc.enabled}, nil)
			w := get(r, "/swagger/doc.json", nil)
			if w.Code != tc.want {
				t.Fatalf("GET /swagger/doc.json = %d; want %d", w.Code, tc.want)
			}
			if tc.enabled {
				body := w.Body.String()
				for _, p := range []string{`"/health"`, `"/stats"`, `"handlers.ErrorResponse"`} {
					if !strings.Contains(body, p) {
						t.Fatalf("doc.json missing %s", p)
					}
				}
			}
		})
	}
}
