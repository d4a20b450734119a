package transform

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidDate is returned (wrapped) when a date cannot be parsed.
var ErrInvalidDate = errors.New("invalid date")

// dateLayouts are tried in order. The first is the warehouse's canonical form.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 -0700 MST",
	"2006/01/02",
	"01/02/2006",
}

// ParseDate coerces a date-like string into a canonical calendar date
// (UTC midnight). Time-of-day components are discarded.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w %q: expected YYYY-MM-DD", ErrInvalidDate, s)
}

// ParseValue coerces a numeric-like string into a float64.
//
// The string is first parsed as-is. If that fails, every character other
// than digits, '.' and '-' is stripped ("$1,234abc" → "1234") and the result
// is parsed again. Anything still unparseable, empty, or non-finite is
// missing and returned as NaN.
func ParseValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsInf(v, 0) {
			return math.NaN()
		}
		return v
	}
	stripped := stripNonNumeric(s)
	if !plausibleNumber(stripped) {
		return math.NaN()
	}
	d, err := decimal.NewFromString(stripped)
	if err != nil {
		return math.NaN()
	}
	return d.InexactFloat64()
}

func stripNonNumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// plausibleNumber rejects stripped strings that cannot be a single decimal:
// no digits, more than one point, or a sign anywhere but the front.
func plausibleNumber(s string) bool {
	if !strings.ContainsAny(s, "0123456789") {
		return false
	}
	if strings.Count(s, ".") > 1 {
		return false
	}
	return !strings.Contains(strings.TrimPrefix(s, "-"), "-")
}
