package store

import (
	"errors"
	"strings"
)

var (
	// ErrClosed is returned for operations submitted after Close.
	ErrClosed = errors.New("storage lane closed")

	// ErrNotFound is returned by lookups that matched no row.
	ErrNotFound = errors.New("record not found")
)

// Error is the typed storage error every lane operation resolves to on
// failure. Op names the domain operation (e.g. "add_user").
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IsConstraint reports whether err is a SQLite constraint violation
// (UNIQUE, NOT NULL, PRIMARY KEY, ...).
func IsConstraint(err error) bool {
	if err == nil {
		return false
	}
	// glebarez/sqlite returns plain-text errors for constraint violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "constraint failed")
}
