// Package query builds the warehouse query text consumed by bankview.
//
// The long-format result schema is a contract: every income query returns
// exactly the columns date, value, unit, variable_name, name. Changing the
// filters changes which metric columns exist downstream.
package query

import (
	"fmt"
	"strings"
)

// Metric names returned by the income query, in chart order.
const (
	MetricTotalDeposits    = "Total deposits"
	MetricInsuredDeposits  = "Estimated Insured Deposits"
	MetricNetOperatingInc  = "Net Operating Income"
	MetricTotalInterestInc = "Total Interest Income"
)

// DesignatedColumn is the metric pinned to the third column of every wide
// table, after the grouping columns.
const DesignatedColumn = MetricTotalDeposits

// Metrics lists the fixed variable names the income query selects.
var Metrics = []string{
	MetricTotalDeposits,
	MetricInsuredDeposits,
	MetricNetOperatingInc,
	MetricTotalInterestInc,
}

// Table names in the warehouse.
const (
	TimeseriesTable = "financial_institution_timeseries"
	EntitiesTable   = "financial_institution_entities"
)

// Options holds the filter predicates of both queries.
type Options struct {
	Cutoff       string  // income rows with date >= Cutoff (YYYY-MM-DD)
	Unit         string  // income rows with this unit only
	Metrics      []string
	RankVariable string  // ranking query: variable code to rank by
	RankDate     string  // ranking query: report date
	MinRankValue float64 // ranking query: value threshold
}

// DefaultOptions returns the filters the dashboard was built around.
func DefaultOptions() Options {
	m := make([]string, len(Metrics))
	copy(m, Metrics)
	return Options{
		Cutoff:       "2022-01-01",
		Unit:         "USD",
		Metrics:      m,
		RankVariable: "ASSET",
		RankDate:     "2022-12-31",
		MinRankValue: 1e11,
	}
}

// IncomeQuery returns the long-format query for the named banks.
// Callers must not pass an empty list: "IN ()" is not valid SQL.
func IncomeQuery(names []string, opts Options) string {
	return fmt.Sprintf(`SELECT date(ts.date) AS date, ts.value, ts.unit, ts.variable_name, ent.name
FROM %s AS ts
JOIN %s AS ent ON (ts.id_rssd = ent.id_rssd)
WHERE ent.name IN (%s)
AND ts.date >= %s
AND ts.variable_name IN (%s)
AND ts.unit = %s
`,
		TimeseriesTable, EntitiesTable,
		quoteList(names),
		quote(opts.Cutoff),
		quoteList(opts.Metrics),
		quote(opts.Unit),
	)
}

// LargestBanksQuery returns the ranked entity-listing query: banks whose
// ranking variable exceeds the threshold on the report date, largest first.
//
// Only banks that filed on exactly RankDate are listed, which is why the
// list can be much shorter than expected.
func LargestBanksQuery(opts Options) string {
	return fmt.Sprintf(`SELECT ent.name
FROM %s AS ts
JOIN %s AS ent ON (ts.id_rssd = ent.id_rssd)
WHERE ts.variable = %s
AND ts.value > %g
AND ts.date = %s
ORDER BY ts.value DESC
`,
		TimeseriesTable, EntitiesTable,
		quote(opts.RankVariable),
		opts.MinRankValue,
		quote(opts.RankDate),
	)
}

// quote renders s as a single-quoted SQL literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = quote(s)
	}
	return strings.Join(quoted, ", ")
}
