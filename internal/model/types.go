// Package model defines the canonical data types used throughout bankview.
// These types are the single source of truth for warehouse rows, the wide
// table handed to the editing surface, chart specifications, and the result
// envelope that every command returns.
package model

import (
	"math"
	"time"
)

// ─── Long Format ──────────────────────────────────────────────────────────────

// RawRow is one row of the long-format warehouse result, as text.
// Column order matches the query contract: date, value, unit, variable_name, name.
type RawRow struct {
	Date         string `json:"date"`
	Value        string `json:"value"`
	Unit         string `json:"unit"`
	VariableName string `json:"variable_name"`
	Name         string `json:"name"`
}

// Observation is a single normalized long-format fact.
// Value is NaN when the raw value could not be parsed (missing data).
// ValueRaw preserves the original string from the warehouse.
type Observation struct {
	Date         time.Time `json:"date"`
	Value        float64   `json:"value"`
	ValueRaw     string    `json:"value_raw"`
	Unit         string    `json:"unit"`
	VariableName string    `json:"variable_name"`
	EntityName   string    `json:"entity_name"`
}

// IsMissing returns true if the observation value is NaN (missing data).
func (o Observation) IsMissing() bool {
	return math.IsNaN(o.Value)
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries performance and cache metadata for a command result.
type ResultStats struct {
	CacheHit   bool  `json:"cache_hit"`
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindBanks      = "banks"
	KindWideTable  = "wide_table"
	KindChart      = "chart"
	KindSummary    = "summary"
	KindSavedTable = "saved_table"
	KindTable      = "table"
)

// BankList is the payload of a KindBanks result.
type BankList struct {
	Names     []string  `json:"names"`
	Default   []string  `json:"default"`
	FetchedAt time.Time `json:"fetched_at"`
}

// TableData is the payload of a KindTable result: a plain grid of text
// for listings that have no richer type.
type TableData struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}
