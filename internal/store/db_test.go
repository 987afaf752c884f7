package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	base := t.TempDir()
	bad := filepath.Join(base, "does-not-exist", "chat.db")

	db, err := OpenSQLite(bad, OpenOptions{Logger: zerolog.Nop()})
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}

	lower := strings.ToLower(err.Error())
	if !(os.IsNotExist(err) ||
		strings.Contains(lower, "unable to open database file") ||
		strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "out of memory")) {
		t.Fatalf("unexpected error opening %q: %v", bad, err)
	}
}

func TestOpenSQLite_SetsPragmasAndPool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")

	db, err := OpenSQLite(path, OpenOptions{Logger: zerolog.Nop(), SlowThreshold: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	var (
		journalMode string
		syncVal     int
		fkOn        int
		busyMS      int
	)
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journalMode)
	}

	if err := db.Raw("PRAGMA synchronous;").Row().Scan(&syncVal); err != nil {
		t.Fatalf("PRAGMA synchronous: %v", err)
	}
	// NORMAL == 1
	if syncVal != 1 {
		t.Fatalf("expected synchronous=1 (NORMAL), got %d", syncVal)
	}

	if err := db.Raw("PRAGMA foreign_keys;").Row().Scan(&fkOn); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fkOn != 0 {
		t.Fatalf("expected foreign_keys=0, got %d", fkOn)
	}

	if err := db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if busyMS != 5000 {
		t.Fatalf("expected busy_timeout=5000, got %d", busyMS)
	}

	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("MaxOpenConnections = %d; want 1", got)
	}
}

func TestOpenSQLite_WithTracing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")

	db, err := OpenSQLite(path, OpenOptions{Logger: zerolog.Nop(), Tracing: true})
	if err != nil {
		t.Fatalf("OpenSQLite(tracing): %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	var one int
	if err := db.Raw("SELECT 1").Row().Scan(&one); err != nil || one != 1 {
		t.Fatalf("SELECT 1 = %d, %v", one, err)
	}
}

func TestIsConstraint(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{os.ErrNotExist, false},
		{&Error{Op: "add_user", Err: errString("constraint failed: UNIQUE constraint failed: User.username (2067)")}, true},
	}
	for _, tc := range cases {
		if got := IsConstraint(tc.err); got != tc.want {
			t.Errorf("IsConstraint(%v) = %v; want %v", tc.err, got, tc.want)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }
