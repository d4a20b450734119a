// Package analyze computes per-bank summaries over wide tables.
// All functions are pure; no I/O.
package analyze

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/derickschaefer/bankview/internal/model"
)

// Summary holds descriptive statistics for one metric of one bank.
type Summary struct {
	Metric     string    `json:"metric"`
	Entity     string    `json:"entity_name"`
	Count      int       `json:"count"`   // rows for the bank
	Missing    int       `json:"missing"` // rows with no value
	MissingPct float64   `json:"missing_pct"`
	FirstDate  time.Time `json:"first_date"`
	LastDate   time.Time `json:"last_date"`
	First      float64   `json:"first"` // earliest non-missing value
	Last       float64   `json:"last"`  // latest non-missing value
	Change     float64   `json:"change"`
	ChangePct  float64   `json:"change_pct"` // (Last-First)/|First| * 100
	Mean       float64   `json:"mean"`
	Median     float64   `json:"median"`
	Std        float64   `json:"std"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
}

// MarshalJSON writes missing statistics as null; NaN has no JSON form.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	out := struct {
		plain
		FirstDate  *string  `json:"first_date"`
		LastDate   *string  `json:"last_date"`
		First      *float64 `json:"first"`
		Last       *float64 `json:"last"`
		Change     *float64 `json:"change"`
		ChangePct  *float64 `json:"change_pct"`
		Mean       *float64 `json:"mean"`
		Median     *float64 `json:"median"`
		Std        *float64 `json:"std"`
		Min        *float64 `json:"min"`
		Max        *float64 `json:"max"`
	}{
		plain:     plain(s),
		FirstDate: nullDate(s.FirstDate),
		LastDate:  nullDate(s.LastDate),
		First:     nullFloat(s.First),
		Last:      nullFloat(s.Last),
		Change:    nullFloat(s.Change),
		ChangePct: nullFloat(s.ChangePct),
		Mean:      nullFloat(s.Mean),
		Median:    nullFloat(s.Median),
		Std:       nullFloat(s.Std),
		Min:       nullFloat(s.Min),
		Max:       nullFloat(s.Max),
	}
	return json.Marshal(out)
}

func nullFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func nullDate(d time.Time) *string {
	if d.IsZero() {
		return nil
	}
	s := d.Format(model.DateLayout)
	return &s
}

// Summarize returns one Summary per (metric, bank) pair, metrics in
// column order and banks in order of first appearance. Values are taken
// in date order; undated rows count but never supply First or Last.
// An empty metrics slice means every metric column in t.
func Summarize(t *model.WideTable, metrics []string) ([]Summary, error) {
	if t == nil {
		return nil, nil
	}
	if len(metrics) == 0 {
		metrics = t.MetricColumns()
	}
	for _, m := range metrics {
		if model.IsGroupingColumn(m) {
			return nil, fmt.Errorf("analyze: %q is not a metric column", m)
		}
		if !t.HasColumn(m) {
			return nil, fmt.Errorf("analyze: no column %q", m)
		}
	}

	byBank := make(map[string][]model.WideRow)
	for _, r := range t.Rows {
		byBank[r.Entity] = append(byBank[r.Entity], r)
	}
	for _, rows := range byBank {
		sort.SliceStable(rows, func(a, b int) bool { return rows[a].Date.Before(rows[b].Date) })
	}

	var out []Summary
	for _, m := range metrics {
		for _, e := range t.Entities() {
			out = append(out, summarizeRows(m, e, byBank[e]))
		}
	}
	return out, nil
}

func summarizeRows(metric, entity string, rows []model.WideRow) Summary {
	s := Summary{Metric: metric, Entity: entity, Count: len(rows)}

	var vals []float64
	firstSet := false
	for _, r := range rows {
		v := r.Value(metric)
		if math.IsNaN(v) {
			s.Missing++
			continue
		}
		vals = append(vals, v)
		if !r.HasDate() {
			continue
		}
		if !firstSet {
			s.First, s.FirstDate = v, r.Date
			firstSet = true
		}
		s.Last, s.LastDate = v, r.Date
	}
	if s.Count > 0 {
		s.MissingPct = float64(s.Missing) / float64(s.Count) * 100
	}
	if len(vals) == 0 {
		nan := math.NaN()
		s.First, s.Last, s.Change, s.ChangePct = nan, nan, nan, nan
		s.Mean, s.Median, s.Std, s.Min, s.Max = nan, nan, nan, nan, nan
		return s
	}

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Mean = mean(vals)
	s.Median = median(sorted)
	s.Std = stddev(vals, s.Mean)

	if !firstSet {
		s.First, s.Last = math.NaN(), math.NaN()
	}
	s.Change = s.Last - s.First
	if s.First != 0 && !math.IsNaN(s.First) {
		s.ChangePct = s.Change / math.Abs(s.First) * 100
	} else {
		s.ChangePct = math.NaN()
	}
	return s
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

func mean(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

// stddev is the sample standard deviation; zero for fewer than two values.
func stddev(vals []float64, m float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var sq float64
	for _, v := range vals {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)-1))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
