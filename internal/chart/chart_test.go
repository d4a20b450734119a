package chart_test

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/bankview/internal/chart"
	"github.com/derickschaefer/bankview/internal/model"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

const deposits = "Total deposits"

func day(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic("day: bad date: " + s)
	}
	return t
}

func row(date, entity string, v float64) model.WideRow {
	return model.WideRow{Date: day(date), Entity: entity, Values: map[string]float64{deposits: v}}
}

// table builds a wide table with the grouping columns plus Total deposits.
func table(rows ...model.WideRow) *model.WideTable {
	t := model.NewWideTable([]string{model.ColDate, model.ColEntity, deposits})
	t.Rows = rows
	return t
}

func sampleTable() *model.WideTable {
	return table(
		row("2022-06-30", "Bank B", 20),
		row("2022-03-31", "Bank A", 10),
		row("", "Bank C", 5),
		row("2022-06-30", "Bank A", math.NaN()),
		row("2022-03-31", "Bank B", 15),
	)
}

// ─── BuildChart ───────────────────────────────────────────────────────────────

func TestBuildChartOrdering(t *testing.T) {
	spec, err := chart.BuildChart(sampleTable(), deposits)
	if err != nil {
		t.Fatalf("BuildChart: %v", err)
	}
	// Missing date sorts first, so Bank C leads; then Bank A (2022-03-31, row 1)
	// precedes Bank B (2022-03-31, row 4) by stable order.
	var names []string
	for _, s := range spec.Series {
		names = append(names, s.Name)
	}
	if strings.Join(names, ",") != "Bank C,Bank A,Bank B" {
		t.Errorf("series order: %v", names)
	}
	b := spec.Series[2]
	if len(b.Points) != 2 || *b.Points[0].Date != "2022-03-31" || *b.Points[1].Value != 20 {
		t.Errorf("Bank B points not date-sorted: %+v", b.Points)
	}
	if spec.Series[0].Points[0].Date != nil {
		t.Error("missing date should be a nil x")
	}
	if spec.Series[1].Points[1].Value != nil {
		t.Error("missing value should be a nil y, not zero")
	}
}

func TestBuildChartLayout(t *testing.T) {
	spec, err := chart.BuildChart(sampleTable(), deposits)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Layout.Title != "Total deposits by Bank" {
		t.Errorf("title: %q", spec.Layout.Title)
	}
	if spec.XField != "date" || spec.YField != deposits || spec.ColorField != "entity_name" {
		t.Errorf("fields: %s %s %s", spec.XField, spec.YField, spec.ColorField)
	}
	rs := spec.Layout.XAxis.RangeSlider
	if rs == nil || !rs.Visible || rs.Thickness != 0.05 {
		t.Errorf("range slider: %+v", rs)
	}
	if !spec.Layout.XAxis.ShowGrid || !spec.Layout.YAxis.ShowGrid {
		t.Error("grid should be on for both axes")
	}
	if spec.Layout.Legend.Orientation != "v" || spec.LineShape != "linear" {
		t.Errorf("legend/line: %q %q", spec.Layout.Legend.Orientation, spec.LineShape)
	}
}

func TestBuildChartDoesNotMutate(t *testing.T) {
	tbl := sampleTable()
	first := tbl.Rows[0].Entity
	if _, err := chart.BuildChart(tbl, deposits); err != nil {
		t.Fatal(err)
	}
	if tbl.Rows[0].Entity != first {
		t.Error("BuildChart reordered the caller's rows")
	}
}

func TestBuildChartMissingColumn(t *testing.T) {
	tbl := sampleTable()
	tbl.DeleteColumn(deposits)
	_, err := chart.BuildChart(tbl, deposits)
	if !errors.Is(err, chart.ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}

	tbl = sampleTable()
	tbl.DeleteColumn(model.ColEntity)
	if _, err := chart.BuildChart(tbl, deposits); !errors.Is(err, chart.ErrMissingColumn) {
		t.Errorf("deleted entity_name: expected ErrMissingColumn, got %v", err)
	}
}

// ─── BuildCharts ──────────────────────────────────────────────────────────────

func TestBuildChartsSkipsDeleted(t *testing.T) {
	tbl := sampleTable()
	set := chart.BuildCharts(tbl, []string{deposits, "Net Operating Income"})
	if len(set.Charts) != 1 || set.Charts[0].Metric != deposits {
		t.Errorf("charts: %+v", set.Charts)
	}
	if len(set.Skipped) != 1 || set.Skipped[0] != "Net Operating Income" {
		t.Errorf("skipped: %v", set.Skipped)
	}
}

func TestBuildChartsDeletedDateSkipsAll(t *testing.T) {
	tbl := sampleTable()
	tbl.DeleteColumn(model.ColDate)
	set := chart.BuildCharts(tbl, []string{deposits})
	if len(set.Charts) != 0 || len(set.Skipped) != 1 {
		t.Errorf("got %+v", set)
	}
}

func TestBuildChartsEmptyTable(t *testing.T) {
	empty := model.NewWideTable([]string{model.ColDate, model.ColEntity})
	set := chart.BuildCharts(empty, []string{deposits})
	if len(set.Charts) != 0 {
		t.Errorf("empty table must build no charts, got %d", len(set.Charts))
	}
	if set := chart.BuildCharts(nil, []string{deposits}); len(set.Charts) != 0 {
		t.Error("nil table must build no charts")
	}
}

// ─── Plot ─────────────────────────────────────────────────────────────────────

func TestPlotRendersSeriesAndLegend(t *testing.T) {
	spec, _ := chart.BuildChart(sampleTable(), deposits)
	var buf bytes.Buffer
	if err := chart.Plot(&buf, spec, chart.PlotOptions{Width: 60, Height: 8}); err != nil {
		t.Fatalf("Plot: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "Total deposits by Bank  (2022-03-31 to 2022-06-30)") {
		t.Errorf("header: %q", strings.SplitN(out, "\n", 2)[0])
	}
	for _, want := range []string{"● Bank C", "■ Bank A", "▲ Bank B", "└"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPlotWindow(t *testing.T) {
	spec, _ := chart.BuildChart(sampleTable(), deposits)
	var buf bytes.Buffer
	err := chart.Plot(&buf, spec, chart.PlotOptions{Width: 60, Height: 6, From: day("2022-05-01")})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "(2022-06-30 to 2022-06-30)") {
		t.Errorf("window not applied:\n%s", buf.String())
	}

	err = chart.Plot(&buf, spec, chart.PlotOptions{From: day("2030-01-01")})
	if err == nil {
		t.Error("empty window should error")
	}
}

// ─── Bar ──────────────────────────────────────────────────────────────────────

func TestLatestValues(t *testing.T) {
	got, err := chart.LatestValues(sampleTable(), deposits)
	if err != nil {
		t.Fatal(err)
	}
	// Bank A's 2022-06-30 value is missing, so its latest is 2022-03-31.
	want := map[string]float64{"Bank B": 20, "Bank A": 10, "Bank C": 5}
	if len(got) != 3 {
		t.Fatalf("got %+v", got)
	}
	for _, l := range got {
		if want[l.Entity] != l.Value {
			t.Errorf("%s: got %v want %v", l.Entity, l.Value, want[l.Entity])
		}
	}
	if got[0].Entity != "Bank B" {
		t.Errorf("order should follow first appearance: %+v", got)
	}
}

func TestBarOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := chart.Bar(&buf, sampleTable(), deposits, chart.BarOptions{Width: 70}); err != nil {
		t.Fatalf("Bar: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 bars, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "Total deposits") {
		t.Errorf("header: %q", lines[0])
	}
	long := strings.Count(lines[1], "█")
	short := strings.Count(lines[3], "█")
	if long <= short {
		t.Errorf("Bank B (20) bar should be longer than Bank C (5): %d vs %d", long, short)
	}
	if !strings.Contains(lines[3], " -  ") {
		t.Errorf("undated value should show '-' for its date: %q", lines[3])
	}
}

func TestBarMissingColumn(t *testing.T) {
	tbl := sampleTable()
	tbl.DeleteColumn(deposits)
	err := chart.Bar(&bytes.Buffer{}, tbl, deposits, chart.BarOptions{})
	if !errors.Is(err, chart.ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
}
