package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-tcp/internal/config"
)

func testConfig(t *testing.T, admin bool) config.Config {
	t.Helper()
	return config.Config{
		Host:            "127.0.0.1",
		Port:            "0",
		IdleTimeout:     time.Minute,
		WriteTimeout:    5 * time.Second,
		MaxLineBytes:    4096,
		MaxConnections:  8,
		ShutdownTimeout: 5 * time.Second,
		DBPath:          filepath.Join(t.TempDir(), "chat_app.db"),
		QueueCapacity:   64,
		RateBurst:       1,
		Admin: config.AdminConfig{
			Enabled:   admin,
			Port:      "0",
			GinMode:   gin.TestMode,
			RateRPS:   100,
			RateBurst: 100,
		},
		OTEL: config.OTELConfig{ServiceName: "chatd-test"},
	}
}

// start runs a new App and returns a stop func that cancels it and reports
// Run's result. stop is idempotent and also runs at cleanup.
func start(t *testing.T, cfg config.Config) (*App, func() error) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	a, err := New(ctx, cfg, zerolog.Nop(), "test")
	if err != nil {
		cancel()
		t.Fatalf("New: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	stop := sync.OnceValue(func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			return errors.New("run did not return")
		}
	})
	t.Cleanup(func() {
		if err := stop(); err != nil {
			t.Error(err)
		}
	})
	return a, stop
}

func TestApp_EndToEnd(t *testing.T) {
	a, stop := start(t, testConfig(t, true))

	conn, err := net.Dial("tcp", a.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(conn)

	steps := []struct{ req, want string }{
		{"add_user alice pw", "User added successfully"},
		{"create_room lobby", "Room created successfully"},
		{"add_user_to_room 1 1", "User added to room successfully"},
		{"send_message 1 1 hello there", "Message sent successfully"},
		{"get_unread_messages_count 1 1", "Unread messages count: 1"},
		{"mark_messages_as_read 1 1", "Messages marked as read successfully"},
		{"get_unread_messages_count 1 1", "Unread messages count: 0"},
	}
	for _, s := range steps {
		if _, err := fmt.Fprintf(conn, "%s\n", s.req); err != nil {
			t.Fatalf("write %q: %v", s.req, err)
		}
		got, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read after %q: %v", s.req, err)
		}
		if got = strings.TrimSuffix(got, "\n"); got != s.want {
			t.Fatalf("%q -> %q; want %q", s.req, got, s.want)
		}
	}

	base := "http://" + a.AdminAddr().String()
	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /health = %d", resp.StatusCode)
	}

	resp, err = http.Get(base + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	var stats struct {
		ActiveSessions int64  `json:"active_sessions"`
		ProcessedOps   uint64 `json:"processed_ops"`
	}
	err = json.NewDecoder(resp.Body).Decode(&stats)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.ActiveSessions != 1 || stats.ProcessedOps < uint64(len(steps)) {
		t.Fatalf("stats = %+v", stats)
	}

	if err := stop(); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if _, err := r.ReadString('\n'); err != io.EOF {
		t.Fatalf("session read after shutdown = %v; want EOF", err)
	}
}

func TestApp_AdminDisabled(t *testing.T) {
	a, _ := start(t, testConfig(t, false))
	if a.AdminAddr() != nil {
		t.Fatalf("AdminAddr = %v; want nil", a.AdminAddr())
	}
}

func TestApp_DataSurvivesRestart(t *testing.T) {
	cfg := testConfig(t, false)

	a, stop := start(t, cfg)
	send(t, a, "create_room lobby", "Room created successfully")
	if err := stop(); err != nil {
		t.Fatalf("Run = %v", err)
	}

	b, _ := start(t, cfg)
	send(t, b, "get_room_by_name lobby", "Room id: 1")
}

func TestNew_BadDBPath(t *testing.T) {
	cfg := testConfig(t, false)
	cfg.DBPath = filepath.Join(t.TempDir(), "missing", "dir", "chat.db")
	if _, err := New(context.Background(), cfg, zerolog.Nop(), "test"); err == nil {
		t.Fatal("expected error for unusable DB path")
	}
}

func TestNew_PortInUseReleasesStorage(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := testConfig(t, false)
	_, cfg.Port, _ = net.SplitHostPort(ln.Addr().String())
	if _, err := New(context.Background(), cfg, zerolog.Nop(), "test"); err == nil {
		t.Fatal("expected listen error")
	}

	// The database handle was released, so a second app can open it.
	cfg.Port = "0"
	start(t, cfg)
}

func send(t *testing.T, a *App, req, want string) {
	t.Helper()
	conn, err := net.Dial("tcp", a.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	fmt.Fprintf(conn, "%s\n", req)
	got, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got = strings.TrimSuffix(got, "\n"); got != want {
		t.Fatalf("%q -> %q; want %q", req, got, want)
	}
}
