package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/derickschaefer/bankview/internal/model"
)

// markers are assigned to series in order and reused after the last one.
var markers = []rune{'●', '■', '▲', '◆', '★', '✚', '○', '□', '△', '◇'}

// PlotOptions controls multi-series ASCII plot rendering.
type PlotOptions struct {
	// Width is the total character width of the chart (including Y-axis label).
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Height is the number of data rows in the chart body (not counting axis labels).
	// If 0, defaults to 14.
	Height int
	// From and To restrict the plotted dates (inclusive). Zero means unbounded.
	From, To time.Time
	// Title overrides the spec's layout title.
	Title string
}

type plotPoint struct {
	date  time.Time
	value float64 // NaN = gap
}

// Plot renders spec as a multi-series ASCII line chart: one marker per bank,
// dotted segments between consecutive values, gaps where values are missing.
// Points without a date cannot be placed on the x-axis and are skipped.
func Plot(w io.Writer, spec model.ChartSpec, opts PlotOptions) error {
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	height := opts.Height
	if height <= 0 {
		height = 14
	}
	title := opts.Title
	if title == "" {
		title = spec.Layout.Title
	}

	// Window every series and find the value and date extents.
	series := make([][]plotPoint, len(spec.Series))
	var minT, maxT time.Time
	minVal, maxVal := math.Inf(1), math.Inf(-1)
	valid := 0
	for si, s := range spec.Series {
		for _, p := range s.Points {
			if p.Date == nil {
				continue
			}
			d, err := time.Parse(model.DateLayout, *p.Date)
			if err != nil {
				return fmt.Errorf("chart plot: series %q: %w", s.Name, err)
			}
			if (!opts.From.IsZero() && d.Before(opts.From)) || (!opts.To.IsZero() && d.After(opts.To)) {
				continue
			}
			pp := plotPoint{date: d, value: math.NaN()}
			if p.Value != nil {
				pp.value = *p.Value
				valid++
				minVal = math.Min(minVal, pp.value)
				maxVal = math.Max(maxVal, pp.value)
				if minT.IsZero() || d.Before(minT) {
					minT = d
				}
				if d.After(maxT) {
					maxT = d
				}
			}
			series[si] = append(series[si], pp)
		}
	}
	if valid == 0 {
		return fmt.Errorf("chart plot: %s has no values to plot in the selected range", spec.Metric)
	}

	ticks := yTicks(minVal, maxVal, height)
	yLabelWidth := 0
	for _, t := range ticks {
		if l := len(formatFloat(t)); l > yLabelWidth {
			yLabelWidth = l
		}
	}
	yAxisWidth := yLabelWidth + 1

	plotWidth := width - yAxisWidth
	if plotWidth < 10 {
		plotWidth = 10
	}

	colFor := func(d time.Time) int {
		if !maxT.After(minT) {
			return plotWidth / 2
		}
		frac := float64(d.Sub(minT)) / float64(maxT.Sub(minT))
		return int(math.Round(frac * float64(plotWidth-1)))
	}
	rowFor := func(v float64) int {
		r := int(math.Round(rowForValue(v, minVal, maxVal, height)))
		return min(max(r, 0), height-1)
	}

	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", plotWidth))
	}
	for si, pts := range series {
		drawSeries(grid, pts, markers[si%len(markers)], colFor, rowFor)
	}

	fmt.Fprintf(w, "%s  (%s to %s)\n", title, minT.Format(model.DateLayout), maxT.Format(model.DateLayout))

	for row := 0; row < height; row++ {
		label := ""
		for _, t := range ticks {
			if math.Abs(rowForValue(t, minVal, maxVal, height)-float64(row)) < 0.5 {
				label = formatFloat(t)
				break
			}
		}
		axisCh := "┤"
		if label == "" {
			axisCh = "│"
		}
		fmt.Fprintf(w, "%*s%s%s\n", yLabelWidth, label, axisCh, string(grid[row]))
	}
	fmt.Fprintf(w, "%s└%s\n", strings.Repeat(" ", yLabelWidth), strings.Repeat("─", plotWidth))
	fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", yLabelWidth), xAxisLabels(minT, maxT, plotWidth))

	for si, s := range spec.Series {
		fmt.Fprintf(w, "  %c %s\n", markers[si%len(markers)], s.Name)
	}
	return nil
}

// drawSeries plots one series: a marker at each value and '·' along the
// straight segment to the previous value. A missing value breaks the line.
func drawSeries(grid [][]rune, pts []plotPoint, marker rune, colFor func(time.Time) int, rowFor func(float64) int) {
	prevCol, prevRow := -1, -1
	for _, p := range pts {
		if math.IsNaN(p.value) {
			prevCol, prevRow = -1, -1
			continue
		}
		c, r := colFor(p.date), rowFor(p.value)
		if prevCol >= 0 && c-prevCol > 1 {
			for x := prevCol + 1; x < c; x++ {
				frac := float64(x-prevCol) / float64(c-prevCol)
				y := int(math.Round(float64(prevRow) + frac*float64(r-prevRow)))
				if grid[y][x] == ' ' {
					grid[y][x] = '·'
				}
			}
		}
		grid[r][c] = marker
		prevCol, prevRow = c, r
	}
}

// ─── Axis helpers ─────────────────────────────────────────────────────────────

// rowForValue returns the float row index (0=top=max) for a given value.
func rowForValue(v, minVal, maxVal float64, height int) float64 {
	if maxVal == minVal {
		return float64(height) / 2
	}
	return (maxVal - v) / (maxVal - minVal) * float64(height-1)
}

// yTicks returns 3–5 evenly-spaced tick values for the Y axis.
func yTicks(minVal, maxVal float64, height int) []float64 {
	if maxVal == minVal {
		return []float64{minVal}
	}
	nTicks := 5
	if height <= 6 {
		nTicks = 3
	}
	ticks := make([]float64, nTicks)
	for i := 0; i < nTicks; i++ {
		ticks[i] = minVal + float64(i)*(maxVal-minVal)/float64(nTicks-1)
	}
	return ticks
}

// xAxisLabels builds a padded string with start, middle, and end date labels.
func xAxisLabels(minT, maxT time.Time, plotWidth int) string {
	startLabel := minT.Format(model.DateLayout)
	endLabel := maxT.Format(model.DateLayout)
	midLabel := minT.Add(maxT.Sub(minT) / 2).Format(model.DateLayout)

	buf := []rune(strings.Repeat(" ", plotWidth))
	writeAt := func(pos int, s string) {
		for i, ch := range s {
			if pos+i >= 0 && pos+i < len(buf) {
				buf[pos+i] = ch
			}
		}
	}
	writeAt(0, startLabel)
	if plotWidth >= 3*len(midLabel)+4 && maxT.After(minT) {
		writeAt(plotWidth/2-len(midLabel)/2, midLabel)
	}
	if maxT.After(minT) {
		writeAt(plotWidth-len(endLabel), endLabel)
	}
	return string(buf)
}

// ─── Utilities ────────────────────────────────────────────────────────────────

// formatFloat formats a float for axis and bar labels, scaling large
// magnitudes to K/M/B/T with one decimal.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	abs := math.Abs(v)
	switch {
	case abs == 0:
		return "0"
	case abs >= 1e12:
		return strconv.FormatFloat(v/1e12, 'f', 1, 64) + "T"
	case abs >= 1e9:
		return strconv.FormatFloat(v/1e9, 'f', 1, 64) + "B"
	case abs >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 1, 64) + "M"
	case abs >= 1e3:
		return strconv.FormatFloat(v/1e3, 'f', 1, 64) + "K"
	}
	var s string
	if abs >= 1 {
		s = strconv.FormatFloat(v, 'f', 2, 64)
	} else {
		s = strconv.FormatFloat(v, 'f', 4, 64)
	}
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

// termWidth returns the terminal width from $COLUMNS, defaulting to 80.
func termWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 20 {
			return n
		}
	}
	return 80
}
