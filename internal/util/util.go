// Package util provides shared utilities: value formatting, name
// normalisation, and error collection.
package util

import (
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// ─── Value Formatting ─────────────────────────────────────────────────────────

// FormatValue formats a float64 in shortest form, showing "." for NaN.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatCompact formats a float64 with thousands separators for table
// display. Fractions are cut to two places; NaN renders as ".".
func FormatCompact(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return humanize.Comma(int64(v))
	}
	return humanize.CommafWithDigits(v, 2)
}

// ─── Names ────────────────────────────────────────────────────────────────────

// NormaliseNames trims whitespace and removes blanks and duplicates while
// preserving order. Bank names are case-sensitive in the warehouse, so case
// is left alone.
func NormaliseNames(names []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
