// Package domain defines the text row shape the storage lane hands back to
// the command layer.
package domain

import "strings"

// NullText is how a SQL NULL column value is rendered in a Row. Clients parse
// this literal, so it must not be replaced with an empty string.
const NullText = "NULL"

// Row is one result row with every column rendered as text.
type Row []string

// Join renders the row's columns separated by ", ".
func (r Row) Join() string { return strings.Join(r, ", ") }

// Rows is an ordered query result.
type Rows []Row

// Format renders each row with Row.Join and separates rows with a line break.
// An empty result renders as "".
func (rs Rows) Format() string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = r.Join()
	}
	return strings.Join(parts, "\n")
}
