package chart

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/derickschaefer/bankview/internal/model"
)

// BarOptions controls horizontal bar chart rendering.
type BarOptions struct {
	// Width is the total character width available for the chart.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// LabelWidth caps the bank-name column. If 0, defaults to 28.
	LabelWidth int
}

// Latest is one bank's most recent non-missing value of a metric.
type Latest struct {
	Entity string
	Date   time.Time // zero if the row had no date
	Value  float64
}

// LatestValues returns each bank's most recent non-missing value of metric,
// in order of first appearance. Rows without a date rank below dated rows;
// among equal dates the later row wins. Banks with no value are omitted.
func LatestValues(t *model.WideTable, metric string) ([]Latest, error) {
	if !t.HasColumn(metric) {
		return nil, fmt.Errorf("chart bar: %w %q", ErrMissingColumn, metric)
	}
	best := make(map[string]Latest)
	for _, r := range t.Rows {
		v := r.Value(metric)
		if math.IsNaN(v) {
			continue
		}
		if cur, ok := best[r.Entity]; ok && r.Date.Before(cur.Date) {
			continue
		}
		best[r.Entity] = Latest{Entity: r.Entity, Date: r.Date, Value: v}
	}
	var out []Latest
	for _, e := range t.Entities() {
		if l, ok := best[e]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// Bar renders a horizontal bar chart of each bank's latest value of metric.
//
// Output example:
//
//	Total deposits  latest value per bank
//	Bank A      2023-12-31  2.4T  ████████████████████
//	Bank B      2023-12-31  1.9T  ████████████████
func Bar(w io.Writer, t *model.WideTable, metric string, opts BarOptions) error {
	totalWidth := opts.Width
	if totalWidth <= 0 {
		totalWidth = termWidth()
	}
	labelMax := opts.LabelWidth
	if labelMax <= 0 {
		labelMax = 28
	}

	latest, err := LatestValues(t, metric)
	if err != nil {
		return err
	}
	if len(latest) == 0 {
		return fmt.Errorf("chart bar: %s has no values to render", metric)
	}

	minVal, maxVal := 0.0, 0.0
	labelWidth, valWidth := 0, 0
	for _, l := range latest {
		minVal = math.Min(minVal, l.Value)
		maxVal = math.Max(maxVal, l.Value)
		labelWidth = max(labelWidth, min(utf8.RuneCountInString(l.Entity), labelMax))
		valWidth = max(valWidth, len(formatFloat(l.Value)))
	}
	dateWidth := len(model.DateLayout)

	// Bar area width = totalWidth - labels - separators (6 chars)
	barAreaWidth := totalWidth - labelWidth - dateWidth - valWidth - 6
	if barAreaWidth < 4 {
		barAreaWidth = 4
	}

	valRange := maxVal - minVal
	if valRange == 0 {
		valRange = 1
	}
	hasNeg := minVal < 0
	var zeroPos int
	if hasNeg {
		zeroPos = int(math.Round((-minVal / valRange) * float64(barAreaWidth-1)))
	}

	fmt.Fprintf(w, "%s  latest value per bank\n", metric)
	for _, l := range latest {
		date := "-"
		if !l.Date.IsZero() {
			date = l.Date.Format(model.DateLayout)
		}
		var bar string
		if hasNeg {
			bar = buildBiBar(l.Value, minVal, maxVal, barAreaWidth, zeroPos)
		} else {
			barLen := int(math.Round(l.Value / valRange * float64(barAreaWidth)))
			barLen = min(max(barLen, 1), barAreaWidth)
			bar = strings.Repeat("█", barLen)
		}
		fmt.Fprintf(w, "%s  %-*s  %*s  %s\n",
			padLabel(l.Entity, labelWidth),
			dateWidth, date,
			valWidth, formatFloat(l.Value),
			bar,
		)
	}
	return nil
}

// padLabel truncates s to width runes (marking the cut with …) and pads it.
func padLabel(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n > width {
		r := []rune(s)
		return string(r[:width-1]) + "…"
	}
	return s + strings.Repeat(" ", width-n)
}

// buildBiBar renders a bar that may extend left (negative) or right (positive)
// from a zero baseline at zeroPos within a field of width barAreaWidth.
func buildBiBar(val, minVal, maxVal float64, barAreaWidth, zeroPos int) string {
	valRange := maxVal - minVal
	buf := []rune(strings.Repeat(" ", barAreaWidth))

	if zeroPos >= 0 && zeroPos < barAreaWidth {
		buf[zeroPos] = '│'
	}

	if val >= 0 {
		end := zeroPos + int(math.Round(val/valRange*float64(barAreaWidth-1)))
		for i := zeroPos + 1; i <= end && i < barAreaWidth; i++ {
			buf[i] = '█'
		}
	} else {
		start := zeroPos - int(math.Round((-val)/valRange*float64(barAreaWidth-1)))
		if start < 0 {
			start = 0
		}
		for i := start; i < zeroPos && i < barAreaWidth; i++ {
			buf[i] = '█'
		}
	}
	return string(buf)
}
