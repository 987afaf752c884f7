// Package sysutil holds process-level helpers shared by the binary and tests:
// global log level selection and construction of the root zerolog logger.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tbourn/go-chat-tcp/internal/config"
)

// SetLogLevel configures the global zerolog level based on a string value.
// Supported values (case-insensitive): debug, info, warn, error, fatal, panic.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// NewLogger builds the root logger described by cfg and returns it together
// with a closer for the underlying sink.
//
// Output goes to stdout unless cfg.File is set, in which case it goes to a
// size-rotated file managed by lumberjack. Pretty switches to the human
// readable console writer on top of whichever sink was selected.
func NewLogger(cfg config.LogConfig) (zerolog.Logger, io.Closer) {
	var (
		sink   io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		sink, closer = lj, lj
	}
	if cfg.Pretty {
		sink = zerolog.ConsoleWriter{Out: sink, TimeFormat: time.RFC3339, NoColor: cfg.File != ""}
	}

	SetLogLevel(cfg.Level)
	return zerolog.New(sink).With().Timestamp().Logger(), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
