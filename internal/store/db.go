// Package store implements the storage lane: a single embedded SQLite
// database driven through GORM, reachable only through a FIFO queue that a
// single worker goroutine drains. This file contains the database
// bootstrapping helpers.
package store

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// OpenOptions tunes OpenSQLite.
type OpenOptions struct {
	// Logger receives GORM warnings and slow statement reports.
	Logger zerolog.Logger
	// SlowThreshold marks statements slower than this as slow (0 disables).
	SlowThreshold time.Duration
	// Tracing installs the OpenTelemetry GORM plugin.
	Tracing bool
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
//
// The pool is pinned to one connection: the storage lane is the only user and
// never runs two statements at once. Foreign key enforcement stays off
// because deletes do not cascade and dangling Message/RoomUser rows are part
// of the storage contract.
func OpenSQLite(path string, opts OpenOptions) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(opts.Logger, opts.SlowThreshold),
	})
	if err != nil {
		return nil, err
	}

	// Pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxIdleTime(0)
	sqlDB.SetConnMaxLifetime(0)

	// PRAGMAs
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=OFF;",
		"PRAGMA busy_timeout=5000;",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	if opts.Tracing {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	return db, nil
}

// gormWriter adapts zerolog to the Printf-style writer GORM's logger expects.
type gormWriter struct {
	l zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.l.Warn().Str("component", "gorm").Msgf(format, args...)
}

// newGormLogger routes GORM's own diagnostics into zerolog. Statement
// parameters are never printed, so passwords bound to INSERT/UPDATE
// statements stay out of the logs.
func newGormLogger(l zerolog.Logger, slow time.Duration) logger.Interface {
	return logger.New(gormWriter{l: l}, logger.Config{
		SlowThreshold:             slow,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
		Colorful:                  false,
	})
}
