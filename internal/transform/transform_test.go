package transform_test

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/bankview/internal/model"
	"github.com/derickschaefer/bankview/internal/transform"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// raw builds a USD warehouse row.
func raw(date, value, variable, name string) model.RawRow {
	return model.RawRow{Date: date, Value: value, Unit: "USD", VariableName: variable, Name: name}
}

// date parses "YYYY-MM-DD" and panics on error — test use only.
func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic("date: " + err.Error())
	}
	return t
}

// obs builds a normalized USD observation.
func obs(d string, v float64, variable, entity string) model.Observation {
	return model.Observation{Date: date(d), Value: v, Unit: "USD", VariableName: variable, EntityName: entity}
}

func isNaN(v float64) bool { return math.IsNaN(v) }

// ─── ParseValue ───────────────────────────────────────────────────────────────

func TestParseValuePlainNumbers(t *testing.T) {
	cases := map[string]float64{
		"100":       100,
		" 42.5 ":    42.5,
		"-7":        -7,
		"1.5e11":    1.5e11,
		"1441.2003": 1441.2003,
	}
	for in, want := range cases {
		if got := transform.ParseValue(in); got != want {
			t.Errorf("ParseValue(%q) = %g, want %g", in, got, want)
		}
	}
}

func TestParseValueStripsArtifacts(t *testing.T) {
	cases := map[string]float64{
		"1,234abc":   1234,
		"$1,000,000": 1000000,
		"12.5%":      12.5,
		"USD 300":    300,
	}
	for in, want := range cases {
		if got := transform.ParseValue(in); got != want {
			t.Errorf("ParseValue(%q) = %g, want %g", in, got, want)
		}
	}
}

func TestParseValueMissing(t *testing.T) {
	for _, in := range []string{"", "n/a", "N/A", ".", "-", "1.2.3", "NaN", "Inf", "--"} {
		if got := transform.ParseValue(in); !isNaN(got) {
			t.Errorf("ParseValue(%q) = %g, want NaN", in, got)
		}
	}
}

// ─── ParseDate ────────────────────────────────────────────────────────────────

func TestParseDateLayouts(t *testing.T) {
	want := date("2022-06-30")
	for _, in := range []string{
		"2022-06-30",
		"2022-06-30T13:45:00Z",
		"2022-06-30 00:00:00",
		"2022/06/30",
		"06/30/2022",
	} {
		got, err := transform.ParseDate(in)
		if err != nil {
			t.Errorf("ParseDate(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseDateInvalid(t *testing.T) {
	_, err := transform.ParseDate("last quarter")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, transform.ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

// ─── Normalize ────────────────────────────────────────────────────────────────

func TestNormalize(t *testing.T) {
	out, err := transform.Normalize([]model.RawRow{
		raw("2022-06-30", "1,234abc", "Total deposits", "Bank A"),
		raw("2022-06-30", "n/a", "Net Operating Income", "Bank A"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(out))
	}
	if out[0].Value != 1234 || out[0].ValueRaw != "1,234abc" {
		t.Errorf("out[0] = %+v", out[0])
	}
	if !out[1].IsMissing() {
		t.Errorf("out[1] should be missing, got %g", out[1].Value)
	}
	if out[0].EntityName != "Bank A" || out[0].Unit != "USD" {
		t.Errorf("dimensions not carried: %+v", out[0])
	}
}

func TestNormalizeBadDateIsFatal(t *testing.T) {
	_, err := transform.Normalize([]model.RawRow{
		raw("2022-06-30", "1", "Total deposits", "Bank A"),
		raw("not a date", "2", "Total deposits", "Bank A"),
	})
	if err == nil {
		t.Fatal("expected error for invalid date")
	}
	if !errors.Is(err, transform.ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
	if !strings.Contains(err.Error(), "row 1") {
		t.Errorf("error should name the row: %v", err)
	}
}

// ─── Dedupe ───────────────────────────────────────────────────────────────────

func TestDedupeKeepsMax(t *testing.T) {
	out := transform.Dedupe([]model.Observation{
		obs("2022-06-30", 90, "Total deposits", "Bank A"),
		obs("2022-06-30", 100, "Total deposits", "Bank A"),
		obs("2022-06-30", 95, "Total deposits", "Bank A"),
	})
	if len(out) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(out))
	}
	if out[0].Value != 100 {
		t.Errorf("expected max 100, got %g", out[0].Value)
	}
}

func TestDedupeRealBeatsMissing(t *testing.T) {
	out := transform.Dedupe([]model.Observation{
		obs("2022-06-30", -5, "Net Operating Income", "Bank A"),
		obs("2022-06-30", math.NaN(), "Net Operating Income", "Bank A"),
	})
	if len(out) != 1 || out[0].Value != -5 {
		t.Fatalf("expected -5 to win over missing, got %+v", out)
	}
}

func TestDedupeAllMissing(t *testing.T) {
	out := transform.Dedupe([]model.Observation{
		obs("2022-06-30", math.NaN(), "Total deposits", "Bank A"),
		obs("2022-06-30", math.NaN(), "Total deposits", "Bank A"),
	})
	if len(out) != 1 || !out[0].IsMissing() {
		t.Fatalf("expected one missing survivor, got %+v", out)
	}
}

func TestDedupeEqualValuesKeepLater(t *testing.T) {
	a := obs("2022-06-30", 100, "Total deposits", "Bank A")
	a.ValueRaw = "first"
	b := obs("2022-06-30", 100, "Total deposits", "Bank A")
	b.ValueRaw = "second"
	out := transform.Dedupe([]model.Observation{a, b})
	if len(out) != 1 || out[0].ValueRaw != "second" {
		t.Fatalf("expected later row to win a tie, got %+v", out)
	}
}

func TestDedupeSingletonsPassThrough(t *testing.T) {
	in := []model.Observation{
		obs("2022-06-30", 1, "Total deposits", "Bank A"),
		obs("2022-06-30", math.NaN(), "Total deposits", "Bank B"),
		obs("2022-09-30", 3, "Total deposits", "Bank A"),
		obs("2022-06-30", 4, "Net Operating Income", "Bank A"),
	}
	out := transform.Dedupe(in)
	if len(out) != len(in) {
		t.Fatalf("expected %d rows, got %d", len(in), len(out))
	}
	for i := range in {
		if in[i].EntityName != out[i].EntityName || !in[i].Date.Equal(out[i].Date) {
			t.Errorf("row %d changed or reordered: %+v", i, out[i])
		}
	}
	if !out[1].IsMissing() {
		t.Error("singleton missing value should pass unchanged")
	}
}

func TestDedupeUnitIsPartOfKey(t *testing.T) {
	usd := obs("2022-06-30", 1, "Total deposits", "Bank A")
	eur := obs("2022-06-30", 2, "Total deposits", "Bank A")
	eur.Unit = "EUR"
	if out := transform.Dedupe([]model.Observation{usd, eur}); len(out) != 2 {
		t.Fatalf("different units must not collide, got %d rows", len(out))
	}
}

// ─── Pivot ────────────────────────────────────────────────────────────────────

func TestPivotColumnsAreGlobalUnion(t *testing.T) {
	pt := transform.Pivot([]model.Observation{
		obs("2022-06-30", 100, "Total deposits", "Bank A"),
		obs("2022-06-30", 5, "Net Operating Income", "Bank B"),
	})
	if len(pt.Labels) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(pt.Labels))
	}
	if pt.Labels[0].Variable != "Net Operating Income" || pt.Labels[1].Variable != "Total deposits" {
		t.Errorf("labels not sorted by variable: %+v", pt.Labels)
	}
	if len(pt.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(pt.Rows))
	}
	// Bank A has no Net Operating Income row: missing, not zero.
	if pt.Rows[0].Entity != "Bank A" || !isNaN(pt.Rows[0].Cells[0]) {
		t.Errorf("Bank A NOI should be NaN, got %+v", pt.Rows[0])
	}
	if pt.Rows[0].Cells[1] != 100 {
		t.Errorf("Bank A deposits: got %g", pt.Rows[0].Cells[1])
	}
	if pt.Rows[1].Entity != "Bank B" || !isNaN(pt.Rows[1].Cells[1]) {
		t.Errorf("Bank B deposits should be NaN, got %+v", pt.Rows[1])
	}
}

func TestPivotSums(t *testing.T) {
	pt := transform.Pivot([]model.Observation{
		obs("2022-06-30", 0.1, "Total deposits", "Bank A"),
		obs("2022-06-30", 0.2, "Total deposits", "Bank A"),
	})
	if len(pt.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(pt.Rows))
	}
	if got := pt.Rows[0].Cells[0]; got != 0.3 {
		t.Errorf("expected exact decimal sum 0.3, got %v", got)
	}
}

func TestPivotMissingOnlyCellStaysMissing(t *testing.T) {
	pt := transform.Pivot([]model.Observation{
		obs("2022-06-30", math.NaN(), "Total deposits", "Bank A"),
	})
	if !isNaN(pt.Rows[0].Cells[0]) {
		t.Errorf("expected NaN, got %g", pt.Rows[0].Cells[0])
	}
}

func TestPivotRowOrder(t *testing.T) {
	pt := transform.Pivot([]model.Observation{
		obs("2022-09-30", 1, "Total deposits", "Bank B"),
		obs("2022-06-30", 1, "Total deposits", "Bank B"),
		obs("2022-06-30", 1, "Total deposits", "Bank A"),
	})
	got := make([]string, len(pt.Rows))
	for i, r := range pt.Rows {
		got[i] = r.Date.Format("2006-01-02") + " " + r.Entity
	}
	want := "2022-06-30 Bank A|2022-06-30 Bank B|2022-09-30 Bank B"
	if strings.Join(got, "|") != want {
		t.Errorf("row order: got %v", got)
	}
}

// ─── Flatten & Rename ─────────────────────────────────────────────────────────

func TestRenameKnownLabels(t *testing.T) {
	for _, v := range []string{
		"Total deposits",
		"Estimated Insured Deposits",
		"Net Operating Income",
		"Total Interest Income",
	} {
		flat := transform.FlattenLabel(transform.ColumnLabel{Values: "VALUE", Agg: "sum", Variable: v})
		if flat != "VALUE sum "+v {
			t.Errorf("FlattenLabel: got %q", flat)
		}
		if got := transform.Rename(flat); got != v {
			t.Errorf("Rename(%q) = %q, want %q", flat, got, v)
		}
	}
}

func TestRenameUnknownPassesThrough(t *testing.T) {
	for _, in := range []string{"VALUE sum Total Assets", "something else", ""} {
		if got := transform.Rename(in); got != in {
			t.Errorf("Rename(%q) = %q, want unchanged", in, got)
		}
	}
}

func TestFlattenSkipsEmptyParts(t *testing.T) {
	if got := transform.FlattenLabel(transform.ColumnLabel{Values: "VALUE", Variable: "X"}); got != "VALUE X" {
		t.Errorf("got %q", got)
	}
}

// ─── Reorder ──────────────────────────────────────────────────────────────────

func TestReorderMovesDesignated(t *testing.T) {
	in := []string{"date", "entity_name", "Estimated Insured Deposits", "Net Operating Income", "Total deposits"}
	got := transform.Reorder(in)
	want := "date,entity_name,Total deposits,Estimated Insured Deposits,Net Operating Income"
	if strings.Join(got, ",") != want {
		t.Errorf("got %v", got)
	}
	if in[4] != "Total deposits" {
		t.Error("input slice was modified")
	}
}

func TestReorderAbsentIsUnchanged(t *testing.T) {
	in := []string{"date", "entity_name", "Net Operating Income"}
	got := transform.Reorder(in)
	if strings.Join(got, ",") != strings.Join(in, ",") {
		t.Errorf("got %v", got)
	}
}

func TestReorderIdempotent(t *testing.T) {
	in := []string{"date", "entity_name", "A", "B", "Total deposits", "Z"}
	once := transform.Reorder(in)
	twice := transform.Reorder(once)
	if strings.Join(once, ",") != strings.Join(twice, ",") {
		t.Errorf("not idempotent: %v vs %v", once, twice)
	}
}

func TestReorderShortList(t *testing.T) {
	got := transform.Reorder([]string{"Total deposits"})
	if len(got) != 1 || got[0] != "Total deposits" {
		t.Errorf("got %v", got)
	}
}

// ─── Reshape (end to end) ─────────────────────────────────────────────────────

func TestReshapeRoundTripScenario(t *testing.T) {
	tbl, err := transform.Reshape([]model.RawRow{
		raw("2022-06-30", "100", "Total deposits", "Bank A"),
		raw("2022-06-30", "90", "Total deposits", "Bank A"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(tbl.Columns, ",") != "date,entity_name,Total deposits" {
		t.Errorf("columns: %v", tbl.Columns)
	}
	if len(tbl.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(tbl.Rows))
	}
	r := tbl.Rows[0]
	if !r.Date.Equal(date("2022-06-30")) || r.Entity != "Bank A" || r.Value("Total deposits") != 100 {
		t.Errorf("unexpected row: %+v", r)
	}
}

func TestReshapeFullColumnOrder(t *testing.T) {
	tbl, err := transform.Reshape([]model.RawRow{
		raw("2022-06-30", "1", "Total Interest Income", "Bank A"),
		raw("2022-06-30", "2", "Net Operating Income", "Bank A"),
		raw("2022-06-30", "3", "Estimated Insured Deposits", "Bank A"),
		raw("2022-06-30", "4", "Total deposits", "Bank A"),
		raw("2022-06-30", "5", "Total Assets", "Bank A"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "date,entity_name,Total deposits,Estimated Insured Deposits,Net Operating Income,VALUE sum Total Assets,Total Interest Income"
	if strings.Join(tbl.Columns, ",") != want {
		t.Errorf("columns:\n got %v\nwant %s", tbl.Columns, want)
	}
	if tbl.Rows[0].Value("VALUE sum Total Assets") != 5 {
		t.Error("unknown metric must not be dropped")
	}
}

func TestReshapeMalformedNumeric(t *testing.T) {
	tbl, err := transform.Reshape([]model.RawRow{
		raw("2022-06-30", "n/a", "Total deposits", "Bank A"),
		raw("2022-06-30", "1,234abc", "Total deposits", "Bank A"),
		raw("2022-06-30", "n/a", "Net Operating Income", "Bank A"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := tbl.Rows[0]
	if r.Value("Total deposits") != 1234 {
		t.Errorf("expected 1234 to outrank missing, got %g", r.Value("Total deposits"))
	}
	if !isNaN(r.Value("Net Operating Income")) {
		t.Errorf("expected missing NOI, got %g", r.Value("Net Operating Income"))
	}
	if !tbl.HasColumn("Net Operating Income") {
		t.Error("all-missing column must still exist")
	}
}

func TestReshapeEmpty(t *testing.T) {
	tbl, err := transform.Reshape(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tbl.Rows) != 0 {
		t.Errorf("expected zero rows, got %d", len(tbl.Rows))
	}
	if strings.Join(tbl.Columns, ",") != "date,entity_name" {
		t.Errorf("expected only grouping columns, got %v", tbl.Columns)
	}
}

func TestReshapeBadDate(t *testing.T) {
	_, err := transform.Reshape([]model.RawRow{raw("2022-13-45", "1", "Total deposits", "Bank A")})
	if !errors.Is(err, transform.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
