package query_test

import (
	"strings"
	"testing"

	"github.com/derickschaefer/bankview/internal/query"
)

func TestIncomeQueryFilters(t *testing.T) {
	q := query.IncomeQuery([]string{"Bank A", "Bank B"}, query.DefaultOptions())
	for _, want := range []string{
		"SELECT date(ts.date) AS date, ts.value, ts.unit, ts.variable_name, ent.name",
		"ent.name IN ('Bank A', 'Bank B')",
		"ts.date >= '2022-01-01'",
		"'Total deposits', 'Estimated Insured Deposits', 'Net Operating Income', 'Total Interest Income'",
		"ts.unit = 'USD'",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
}

func TestIncomeQueryEscapesQuotes(t *testing.T) {
	q := query.IncomeQuery([]string{"O'Brien Bank"}, query.DefaultOptions())
	if !strings.Contains(q, "'O''Brien Bank'") {
		t.Errorf("quote not escaped:\n%s", q)
	}
}

func TestLargestBanksQuery(t *testing.T) {
	q := query.LargestBanksQuery(query.DefaultOptions())
	for _, want := range []string{
		"ts.variable = 'ASSET'",
		"ts.value > 1e+11",
		"ts.date = '2022-12-31'",
		"ORDER BY ts.value DESC",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
}

func TestDefaultOptionsCopiesMetrics(t *testing.T) {
	opts := query.DefaultOptions()
	opts.Metrics[0] = "changed"
	if query.Metrics[0] != query.MetricTotalDeposits {
		t.Error("DefaultOptions must not alias the package Metrics slice")
	}
}
