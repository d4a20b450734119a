package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Grouping column names. Every wide table starts with these two columns
// unless the user deleted them in the editing surface.
const (
	ColDate   = "date"
	ColEntity = "entity_name"
)

// DateLayout is the canonical calendar date layout.
const DateLayout = "2006-01-02"

// IsGroupingColumn reports whether name is one of the two grouping columns.
func IsGroupingColumn(name string) bool {
	return name == ColDate || name == ColEntity
}

// WideRow is one (date, entity) record of a wide table.
// A zero Date means the date is missing. Values holds one entry per metric
// column; an absent key or a NaN value both mean missing.
type WideRow struct {
	Date   time.Time
	Entity string
	Values map[string]float64
}

// HasDate reports whether the row carries a date.
func (r WideRow) HasDate() bool { return !r.Date.IsZero() }

// Value returns the metric value for name, or NaN if missing.
func (r WideRow) Value(name string) float64 {
	v, ok := r.Values[name]
	if !ok {
		return math.NaN()
	}
	return v
}

// WideTable is the wide-format table: one row per (date, entity), one
// column per metric. Columns is the authoritative display order.
type WideTable struct {
	Columns []string
	Rows    []WideRow
}

// NewWideTable returns an empty table with the given column order.
func NewWideTable(columns []string) *WideTable {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &WideTable{Columns: cols}
}

// Column is the result of an optional-field lookup on a WideTable.
// Values is nil for grouping columns.
type Column struct {
	Name     string
	Position int
	Values   []float64
}

// Lookup returns the named column and true, or a zero Column and false when
// the column does not exist (for example because the user deleted it).
func (t *WideTable) Lookup(name string) (Column, bool) {
	for i, c := range t.Columns {
		if c != name {
			continue
		}
		col := Column{Name: name, Position: i}
		if !IsGroupingColumn(name) {
			col.Values = make([]float64, len(t.Rows))
			for j, r := range t.Rows {
				col.Values[j] = r.Value(name)
			}
		}
		return col, true
	}
	return Column{}, false
}

// HasColumn reports whether the table has a column called name.
func (t *WideTable) HasColumn(name string) bool {
	_, ok := t.Lookup(name)
	return ok
}

// MetricColumns returns the non-grouping columns in display order.
func (t *WideTable) MetricColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if !IsGroupingColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// Entities returns the distinct entity names in order of first appearance.
func (t *WideTable) Entities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.Rows {
		if seen[r.Entity] {
			continue
		}
		seen[r.Entity] = true
		out = append(out, r.Entity)
	}
	return out
}

// DeleteColumn removes the named column and its cells.
// Returns false if the column did not exist.
func (t *WideTable) DeleteColumn(name string) bool {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	t.Columns = append(t.Columns[:idx:idx], t.Columns[idx+1:]...)
	for i := range t.Rows {
		switch name {
		case ColDate:
			t.Rows[i].Date = time.Time{}
		case ColEntity:
			t.Rows[i].Entity = ""
		default:
			delete(t.Rows[i].Values, name)
		}
	}
	return true
}

// SetValue sets a metric cell. NaN clears it.
func (t *WideTable) SetValue(row int, name string, v float64) error {
	if row < 0 || row >= len(t.Rows) {
		return fmt.Errorf("row %d out of range (table has %d rows)", row, len(t.Rows))
	}
	if IsGroupingColumn(name) {
		return fmt.Errorf("column %q is not a metric column", name)
	}
	if !t.HasColumn(name) {
		return fmt.Errorf("no column %q", name)
	}
	if t.Rows[row].Values == nil {
		t.Rows[row].Values = make(map[string]float64)
	}
	if math.IsNaN(v) {
		delete(t.Rows[row].Values, name)
		return nil
	}
	t.Rows[row].Values[name] = v
	return nil
}

// CellText returns the display text of a cell: dates as YYYY-MM-DD,
// numbers in shortest form, and "" for missing cells.
func (t *WideTable) CellText(row int, name string) string {
	r := t.Rows[row]
	switch name {
	case ColDate:
		if !r.HasDate() {
			return ""
		}
		return r.Date.Format(DateLayout)
	case ColEntity:
		return r.Entity
	default:
		v := r.Value(name)
		if math.IsNaN(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

// Clone returns a deep copy of the table.
func (t *WideTable) Clone() *WideTable {
	out := NewWideTable(t.Columns)
	out.Rows = make([]WideRow, len(t.Rows))
	for i, r := range t.Rows {
		vals := make(map[string]float64, len(r.Values))
		for k, v := range r.Values {
			vals[k] = v
		}
		out.Rows[i] = WideRow{Date: r.Date, Entity: r.Entity, Values: vals}
	}
	return out
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

// wideTableJSON is the on-the-wire shape. Rows are positional, following
// Columns; missing cells are null because encoding/json cannot carry NaN.
type wideTableJSON struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// MarshalJSON implements json.Marshaler.
func (t *WideTable) MarshalJSON() ([]byte, error) {
	out := wideTableJSON{Columns: t.Columns, Rows: make([][]interface{}, len(t.Rows))}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	for i, r := range t.Rows {
		cells := make([]interface{}, len(t.Columns))
		for j, c := range t.Columns {
			switch c {
			case ColDate:
				if r.HasDate() {
					cells[j] = r.Date.Format(DateLayout)
				}
			case ColEntity:
				cells[j] = r.Entity
			default:
				if v := r.Value(c); !math.IsNaN(v) {
					cells[j] = v
				}
			}
		}
		out.Rows[i] = cells
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *WideTable) UnmarshalJSON(data []byte) error {
	var in wideTableJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t.Columns = in.Columns
	t.Rows = make([]WideRow, 0, len(in.Rows))
	for i, cells := range in.Rows {
		if len(cells) != len(in.Columns) {
			return fmt.Errorf("row %d: expected %d cells, got %d", i, len(in.Columns), len(cells))
		}
		row := WideRow{Values: make(map[string]float64)}
		for j, c := range in.Columns {
			cell := cells[j]
			if cell == nil {
				continue
			}
			switch c {
			case ColDate:
				s, ok := cell.(string)
				if !ok {
					return fmt.Errorf("row %d: date must be a string, got %T", i, cell)
				}
				d, err := time.Parse(DateLayout, s)
				if err != nil {
					return fmt.Errorf("row %d: invalid date %q", i, s)
				}
				row.Date = d
			case ColEntity:
				s, ok := cell.(string)
				if !ok {
					return fmt.Errorf("row %d: entity_name must be a string, got %T", i, cell)
				}
				row.Entity = s
			default:
				v, ok := cell.(float64)
				if !ok {
					return fmt.Errorf("row %d: %s must be a number or null, got %T", i, c, cell)
				}
				row.Values[c] = v
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return nil
}
