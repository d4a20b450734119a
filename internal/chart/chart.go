// Package chart turns wide tables into chart specifications and renders
// them in the terminal.
//
//   - BuildChart / BuildCharts: the chart data selector. One line-chart spec
//     per metric column, one series per bank, x = date, y = the metric.
//   - Plot: multi-series ASCII line chart of a spec, with a date window
//     that stands in for the zoomable range control.
//   - Bar: horizontal bar chart comparing each bank's latest value.
//
// Missing values are gaps, never zeros.
package chart

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/derickschaefer/bankview/internal/model"
)

// ErrMissingColumn is returned (wrapped) when a column needed for a chart
// is not in the table, usually because the user deleted it while editing.
var ErrMissingColumn = errors.New("missing column")

// Attribution is printed under rendered charts.
const Attribution = "Financial data aggregated by Cybersyn from FDIC, FFIEC, FRED, BLS, CFPB, " +
	"Bank of England, Bank of International Settlements, Bank of Canada, " +
	"Banco de Mexico, and Banco Central do Brasil."

// Layout constants shared by every chart.
const (
	LineShape       = "linear"
	SliderThickness = 0.05
	LegendVertical  = "v"
)

// BuildChart builds the line-chart spec for metric. Rows are ordered by
// date ascending with missing dates first; series appear in order of each
// bank's first row after that sort. The table is not modified.
//
// Callers should check the column with Lookup first; BuildChart fails with
// ErrMissingColumn when metric, date or entity_name is absent.
func BuildChart(t *model.WideTable, metric string) (model.ChartSpec, error) {
	for _, name := range []string{metric, model.ColDate, model.ColEntity} {
		if !t.HasColumn(name) {
			return model.ChartSpec{}, fmt.Errorf("chart %q: %w %q", metric, ErrMissingColumn, name)
		}
	}
	if model.IsGroupingColumn(metric) {
		return model.ChartSpec{}, fmt.Errorf("chart %q: not a metric column", metric)
	}

	order := make([]int, len(t.Rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := t.Rows[order[a]], t.Rows[order[b]]
		if !ra.HasDate() || !rb.HasDate() {
			return !ra.HasDate() && rb.HasDate()
		}
		return ra.Date.Before(rb.Date)
	})

	index := make(map[string]int)
	var series []model.ChartSeries
	for _, i := range order {
		r := t.Rows[i]
		si, ok := index[r.Entity]
		if !ok {
			si = len(series)
			index[r.Entity] = si
			series = append(series, model.ChartSeries{Name: r.Entity})
		}
		series[si].Points = append(series[si].Points, point(t, i, metric))
	}

	return model.ChartSpec{
		Metric:     metric,
		XField:     model.ColDate,
		YField:     metric,
		ColorField: model.ColEntity,
		LineShape:  LineShape,
		Series:     series,
		Layout: model.ChartLayout{
			Title: metric + " by Bank",
			XAxis: model.Axis{
				Title:       model.ColDate,
				ShowGrid:    true,
				RangeSlider: &model.RangeSlider{Visible: true, Thickness: SliderThickness},
			},
			YAxis:  model.Axis{Title: metric, ShowGrid: true},
			Legend: model.Legend{Orientation: LegendVertical},
		},
	}, nil
}

func point(t *model.WideTable, row int, metric string) model.ChartPoint {
	var p model.ChartPoint
	r := t.Rows[row]
	if r.HasDate() {
		d := r.Date.Format(model.DateLayout)
		p.Date = &d
	}
	if v := r.Value(metric); !math.IsNaN(v) {
		p.Value = &v
	}
	return p
}

// BuildCharts builds one chart per metric that still exists in t, in the
// order given. Metrics whose column is gone, or whose chart cannot be built
// because a grouping column is gone, are listed in Skipped. A table with no
// rows yields no charts.
func BuildCharts(t *model.WideTable, metrics []string) model.ChartSet {
	var set model.ChartSet
	if t == nil || len(t.Rows) == 0 {
		return set
	}
	for _, m := range metrics {
		if _, ok := t.Lookup(m); !ok {
			set.Skipped = append(set.Skipped, m)
			continue
		}
		spec, err := BuildChart(t, m)
		if err != nil {
			set.Skipped = append(set.Skipped, m)
			continue
		}
		set.Charts = append(set.Charts, spec)
	}
	return set
}
