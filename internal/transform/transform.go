// Package transform implements the stateless reshape pipeline that turns a
// long-format warehouse result into the wide table used for editing and
// plotting. Each stage is a pure function; no side effects, no I/O.
//
//	Normalize → Dedupe → Pivot → FlattenAndRename → Reorder
package transform

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/derickschaefer/bankview/internal/model"
)

// DesignatedColumn is moved to DesignatedPosition by Reorder.
const (
	DesignatedColumn   = "Total deposits"
	DesignatedPosition = 2
)

// ─── Normalize ────────────────────────────────────────────────────────────────

// Normalize parses the date and value of every raw row.
// An unparseable date aborts the whole run; an unparseable value becomes NaN.
func Normalize(rows []model.RawRow) ([]model.Observation, error) {
	out := make([]model.Observation, 0, len(rows))
	for i, r := range rows {
		d, err := ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("normalize: row %d: %w", i, err)
		}
		out = append(out, model.Observation{
			Date:         d,
			Value:        ParseValue(r.Value),
			ValueRaw:     r.Value,
			Unit:         r.Unit,
			VariableName: r.VariableName,
			EntityName:   r.Name,
		})
	}
	return out, nil
}

// ─── Dedupe ───────────────────────────────────────────────────────────────────

type obsKey struct {
	date     time.Time
	unit     string
	variable string
	entity   string
}

// Dedupe keeps exactly one observation per (date, unit, variable_name,
// entity_name). Candidates are ordered by value ascending with missing
// values first and the last one is kept, so the largest real value wins and
// a real value always beats a missing one. Equal values keep the later row.
//
// Upstream sources sometimes report a metric twice for one period; the
// larger figure is treated as the restatement. This is a business heuristic
// with no revision metadata behind it and is awaiting product confirmation.
//
// Output preserves the order in which each key first appears.
func Dedupe(obs []model.Observation) []model.Observation {
	best := make(map[obsKey]int, len(obs))
	order := make([]obsKey, 0, len(obs))
	for i, o := range obs {
		k := obsKey{date: o.Date, unit: o.Unit, variable: o.VariableName, entity: o.EntityName}
		cur, seen := best[k]
		if !seen {
			best[k] = i
			order = append(order, k)
			continue
		}
		if sortsAtOrAfter(o.Value, obs[cur].Value) {
			best[k] = i
		}
	}
	out := make([]model.Observation, len(order))
	for i, k := range order {
		out[i] = obs[best[k]]
	}
	return out
}

// sortsAtOrAfter reports whether a sorts at or after b in ascending order
// with NaN first.
func sortsAtOrAfter(a, b float64) bool {
	if math.IsNaN(a) {
		return math.IsNaN(b)
	}
	return math.IsNaN(b) || a >= b
}

// ─── Pivot ────────────────────────────────────────────────────────────────────

// Aggregation and value-field names that make up a pivot column label.
const (
	ValueField = "VALUE"
	AggSum     = "sum"
)

// ColumnLabel is the compound label of a pivot column.
type ColumnLabel struct {
	Values   string
	Agg      string
	Variable string
}

// PivotRow is one (date, entity) group. Cells follow PivotTable.Labels;
// NaN marks a variable with no present value in the group.
type PivotRow struct {
	Date   time.Time
	Entity string
	Cells  []float64
}

// PivotTable is the long → wide result before labels are flattened.
type PivotTable struct {
	Labels []ColumnLabel
	Rows   []PivotRow
}

type groupKey struct {
	date   time.Time
	entity string
}

// Pivot groups observations by (date, entity_name) and emits one column per
// distinct variable_name in the whole input, summing values per cell.
// Missing values are skipped; a cell with no present value stays NaN rather
// than becoming zero. Rows are ordered by date then entity; columns by
// variable name.
func Pivot(obs []model.Observation) *PivotTable {
	varSet := make(map[string]bool)
	for _, o := range obs {
		varSet[o.VariableName] = true
	}
	variables := make([]string, 0, len(varSet))
	for v := range varSet {
		variables = append(variables, v)
	}
	sort.Strings(variables)
	varIdx := make(map[string]int, len(variables))
	labels := make([]ColumnLabel, len(variables))
	for i, v := range variables {
		varIdx[v] = i
		labels[i] = ColumnLabel{Values: ValueField, Agg: AggSum, Variable: v}
	}

	type acc struct {
		sum   decimal.Decimal
		count int
	}
	groups := make(map[groupKey][]acc)
	var keys []groupKey
	for _, o := range obs {
		k := groupKey{date: o.Date, entity: o.EntityName}
		cells, ok := groups[k]
		if !ok {
			cells = make([]acc, len(variables))
			keys = append(keys, k)
		}
		if !o.IsMissing() {
			c := &cells[varIdx[o.VariableName]]
			c.sum = c.sum.Add(decimal.NewFromFloat(o.Value))
			c.count++
		}
		groups[k] = cells
	}

	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].date.Equal(keys[j].date) {
			return keys[i].date.Before(keys[j].date)
		}
		return keys[i].entity < keys[j].entity
	})

	rows := make([]PivotRow, len(keys))
	for i, k := range keys {
		cells := make([]float64, len(variables))
		for j, c := range groups[k] {
			if c.count == 0 {
				cells[j] = math.NaN()
			} else {
				cells[j] = c.sum.InexactFloat64()
			}
		}
		rows[i] = PivotRow{Date: k.date, Entity: k.entity, Cells: cells}
	}
	return &PivotTable{Labels: labels, Rows: rows}
}

// ─── Flatten & Rename ─────────────────────────────────────────────────────────

// renames maps flattened pivot labels to display names.
var renames = map[string]string{
	"VALUE sum Total deposits":             "Total deposits",
	"VALUE sum Estimated Insured Deposits": "Estimated Insured Deposits",
	"VALUE sum Net Operating Income":       "Net Operating Income",
	"VALUE sum Total Interest Income":      "Total Interest Income",
}

// FlattenLabel joins the non-empty parts of a compound label with spaces.
func FlattenLabel(l ColumnLabel) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.Values, l.Agg, l.Variable} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Rename maps a flattened label to its display name. Unknown labels are
// returned unchanged.
func Rename(flat string) string {
	if name, ok := renames[flat]; ok {
		return name
	}
	return flat
}

// FlattenAndRename flattens and renames every label, preserving order.
func FlattenAndRename(labels []ColumnLabel) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = Rename(FlattenLabel(l))
	}
	return out
}

// ─── Reorder ──────────────────────────────────────────────────────────────────

// Reorder moves DesignatedColumn to DesignatedPosition, right after the two
// grouping columns. Without it, the order is returned unchanged. The input
// slice is not modified.
func Reorder(columns []string) []string {
	out := make([]string, 0, len(columns))
	found := false
	for _, c := range columns {
		if c == DesignatedColumn {
			found = true
			continue
		}
		out = append(out, c)
	}
	if !found {
		return append(out[:0:0], columns...)
	}
	pos := DesignatedPosition
	if pos > len(out) {
		pos = len(out)
	}
	out = append(out, "")
	copy(out[pos+1:], out[pos:])
	out[pos] = DesignatedColumn
	return out
}

// ─── Reshape ──────────────────────────────────────────────────────────────────

// Reshape runs the full pipeline over a warehouse result. Zero input rows
// yield an empty table holding only the grouping columns.
func Reshape(rows []model.RawRow) (*model.WideTable, error) {
	obs, err := Normalize(rows)
	if err != nil {
		return nil, err
	}
	pt := Pivot(Dedupe(obs))
	names := FlattenAndRename(pt.Labels)

	columns := append([]string{model.ColDate, model.ColEntity}, names...)
	table := model.NewWideTable(Reorder(columns))
	table.Rows = make([]model.WideRow, len(pt.Rows))
	for i, r := range pt.Rows {
		vals := make(map[string]float64, len(names))
		for j, name := range names {
			if !math.IsNaN(r.Cells[j]) {
				vals[name] = r.Cells[j]
			}
		}
		table.Rows[i] = model.WideRow{Date: r.Date, Entity: r.Entity, Values: vals}
	}
	return table, nil
}
