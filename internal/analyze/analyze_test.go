package analyze_test

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/bankview/internal/analyze"
	"github.com/derickschaefer/bankview/internal/model"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

const deposits = "Total deposits"

// quarterly builds one bank's rows at consecutive quarter ends from 2022-Q1.
func quarterly(entity string, values ...float64) []model.WideRow {
	out := make([]model.WideRow, len(values))
	for i, v := range values {
		out[i] = model.WideRow{
			Date:   time.Date(2022, time.Month(3*(i+1)+1), 0, 0, 0, 0, 0, time.UTC),
			Entity: entity,
			Values: map[string]float64{deposits: v},
		}
	}
	return out
}

func table(rows ...[]model.WideRow) *model.WideTable {
	t := model.NewWideTable([]string{model.ColDate, model.ColEntity, deposits})
	for _, r := range rows {
		t.Rows = append(t.Rows, r...)
	}
	return t
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// ─── Summarize ────────────────────────────────────────────────────────────────

func TestSummarizeBasicCounts(t *testing.T) {
	tbl := table(quarterly("Bank A", 100, math.NaN(), 120, 150))
	got, err := analyze.Summarize(tbl, nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(got))
	}
	s := got[0]
	if s.Metric != deposits || s.Entity != "Bank A" {
		t.Errorf("key: %q %q", s.Metric, s.Entity)
	}
	if s.Count != 4 || s.Missing != 1 {
		t.Errorf("Count/Missing: %d/%d", s.Count, s.Missing)
	}
	if !approxEqual(s.MissingPct, 25, 1e-9) {
		t.Errorf("MissingPct: %g", s.MissingPct)
	}
	if s.First != 100 || s.Last != 150 || s.Change != 50 {
		t.Errorf("First/Last/Change: %g %g %g", s.First, s.Last, s.Change)
	}
	if !approxEqual(s.ChangePct, 50, 1e-9) {
		t.Errorf("ChangePct: %g", s.ChangePct)
	}
	if s.Min != 100 || s.Max != 150 || s.Median != 120 {
		t.Errorf("Min/Max/Median: %g %g %g", s.Min, s.Max, s.Median)
	}
	if !approxEqual(s.Mean, 370.0/3, 1e-9) {
		t.Errorf("Mean: %g", s.Mean)
	}
	if s.FirstDate.Format(model.DateLayout) != "2022-03-31" || s.LastDate.Format(model.DateLayout) != "2022-12-31" {
		t.Errorf("dates: %s %s", s.FirstDate, s.LastDate)
	}
}

func TestSummarizeOrdersByDate(t *testing.T) {
	rows := quarterly("Bank A", 10, 20, 30)
	rows[0], rows[2] = rows[2], rows[0]
	got, err := analyze.Summarize(table(rows), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].First != 10 || got[0].Last != 30 {
		t.Errorf("First/Last should follow dates, got %g/%g", got[0].First, got[0].Last)
	}
}

func TestSummarizeBankOrder(t *testing.T) {
	tbl := table(quarterly("Bank B", 1), quarterly("Bank A", 2), quarterly("Bank B", 3))
	got, err := analyze.Summarize(tbl, []string{deposits})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Entity != "Bank B" || got[1].Entity != "Bank A" {
		t.Errorf("order: %+v", got)
	}
}

func TestSummarizeAllMissing(t *testing.T) {
	got, err := analyze.Summarize(table(quarterly("Bank A", math.NaN(), math.NaN())), nil)
	if err != nil {
		t.Fatal(err)
	}
	s := got[0]
	if s.Missing != 2 || !math.IsNaN(s.Mean) || !math.IsNaN(s.First) || !math.IsNaN(s.ChangePct) {
		t.Errorf("all-missing summary: %+v", s)
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"mean":null`) || !strings.Contains(string(b), `"first_date":null`) {
		t.Errorf("missing stats should be null: %s", b)
	}
}

func TestSummarizeZeroFirst(t *testing.T) {
	got, _ := analyze.Summarize(table(quarterly("Bank A", 0, 5)), nil)
	if !math.IsNaN(got[0].ChangePct) {
		t.Errorf("ChangePct from zero should be NaN, got %g", got[0].ChangePct)
	}
	if got[0].Change != 5 {
		t.Errorf("Change: %g", got[0].Change)
	}
}

func TestSummarizeUnknownMetric(t *testing.T) {
	if _, err := analyze.Summarize(table(quarterly("Bank A", 1)), []string{"Nope"}); err == nil {
		t.Error("expected error for unknown column")
	}
	if _, err := analyze.Summarize(table(quarterly("Bank A", 1)), []string{model.ColDate}); err == nil {
		t.Error("expected error for grouping column")
	}
}

func TestSummarizeUndatedRow(t *testing.T) {
	rows := quarterly("Bank A", 10)
	rows = append(rows, model.WideRow{Entity: "Bank A", Values: map[string]float64{deposits: 99}})
	got, _ := analyze.Summarize(table(rows), nil)
	s := got[0]
	if s.Last != 10 || s.Max != 99 || s.Count != 2 {
		t.Errorf("undated row: %+v", s)
	}
}
