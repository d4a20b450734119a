package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/bankview/internal/chart"
	"github.com/derickschaefer/bankview/internal/model"
	"github.com/derickschaefer/bankview/internal/query"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Chart each metric of the wide table, one line per bank",
	Long: `Chart commands build one line chart per designated metric: Total deposits,
Estimated Insured Deposits, Net Operating Income and Total Interest Income.
A metric whose column was deleted from the table is skipped with a warning.

The table comes from the warehouse (--bank, default selection), a saved
table (--saved), or a file (--file, - for stdin):

  bankview chart plot --bank chase --bank citibank
  bankview table --format csv | bankview chart plot --file -
  bankview chart bar --saved q4-review --metric "Net Operating Income"
  bankview chart spec --format json > charts.json`,
}

// chartMetrics returns the metrics to chart: the --metric flags, or every
// designated metric.
func chartMetrics(flags []string) []string {
	if len(flags) > 0 {
		return flags
	}
	return query.Metrics
}

// ─── chart plot ──────────────────────────────────────────────────────────────

var (
	chartPlotSrc     tableSource
	chartPlotMetrics []string
	chartPlotWidth   int
	chartPlotHeight  int
	chartPlotFrom    string
	chartPlotTo      string
)

var chartPlotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Multi-line ASCII chart per metric with labeled axes",
	Long: `Renders each metric as a multi-line chart: one marker per bank, date on the
x-axis, value on the y-axis. Missing values leave gaps in the line.

--from and --to narrow the visible date range, like dragging the range
slider under an interactive chart.`,
	Example: `  bankview chart plot
  bankview chart plot --metric "Total deposits" --from 2023-01-01
  bankview chart plot --no-default --bank "Bank of America" --width 120 --height 20`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseDateFlag("from", chartPlotFrom)
		if err != nil {
			return err
		}
		to, err := parseDateFlag("to", chartPlotTo)
		if err != nil {
			return err
		}
		if !from.IsZero() && !to.IsZero() && to.Before(from) {
			return fmt.Errorf("--to %s is before --from %s", chartPlotTo, chartPlotFrom)
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		lt, err := chartPlotSrc.load(cmd.Context(), deps)
		if err != nil {
			return err
		}
		set := chart.BuildCharts(lt.table, chartMetrics(chartPlotMetrics))
		for _, m := range set.Skipped {
			fmt.Fprintf(os.Stderr, "⚠  skipping %q: column not in table\n", m)
		}
		if deps.Config.Quiet {
			return nil
		}

		w, closeFn, err := outputWriter(os.Stdout)
		if err != nil {
			return err
		}
		defer closeFn()

		for i, spec := range set.Charts {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if err := chart.Plot(w, spec, chart.PlotOptions{
				Width:  chartPlotWidth,
				Height: chartPlotHeight,
				From:   from,
				To:     to,
			}); err != nil {
				return err
			}
		}
		if len(set.Charts) > 0 {
			fmt.Fprintf(w, "\n%s\n", chart.Attribution)
		}
		return closeFn()
	},
}

// ─── chart bar ───────────────────────────────────────────────────────────────

var (
	chartBarSrc    tableSource
	chartBarMetric string
	chartBarWidth  int
	chartBarLabel  int
)

var chartBarCmd = &cobra.Command{
	Use:   "bar",
	Short: "Horizontal bar chart of each bank's latest value",
	Long: `Renders one labeled bar per bank showing its most recent non-missing value
of a metric. Negative values extend left from a zero baseline.`,
	Example: `  bankview chart bar
  bankview chart bar --metric "Net Operating Income"
  bankview chart bar --file banks.csv --metric "Estimated Insured Deposits"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		lt, err := chartBarSrc.load(cmd.Context(), deps)
		if err != nil {
			return err
		}
		if deps.Config.Quiet {
			return nil
		}
		w, closeFn, err := outputWriter(os.Stdout)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := chart.Bar(w, lt.table, chartBarMetric, chart.BarOptions{
			Width:      chartBarWidth,
			LabelWidth: chartBarLabel,
		}); err != nil {
			return err
		}
		return closeFn()
	},
}

// ─── chart spec ──────────────────────────────────────────────────────────────

var (
	chartSpecSrc     tableSource
	chartSpecMetrics []string
)

var chartSpecCmd = &cobra.Command{
	Use:   "spec",
	Short: "Output the chart specifications instead of drawing them",
	Long: `Builds the chart specifications (series per bank, axis titles, legend and
range slider settings) and renders them in the chosen format. With the
default table format a per-chart summary is printed; json and yaml carry
the full specification for an external plotting front-end.`,
	Example: `  bankview chart spec
  bankview chart spec --format json --out charts.json
  bankview chart spec --saved q4-review --format yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		lt, err := chartSpecSrc.load(cmd.Context(), deps)
		if err != nil {
			return err
		}
		set := chart.BuildCharts(lt.table, chartMetrics(chartSpecMetrics))
		result := newResult(model.KindChart, "chart spec", set, len(set.Charts), start)
		result.Stats.CacheHit = lt.cacheHit
		for _, m := range set.Skipped {
			result.Warnings = append(result.Warnings, fmt.Sprintf("skipped %q: column not in table", m))
		}
		return emit(deps, result)
	},
}

func init() {
	chartPlotSrc.register(chartPlotCmd)
	chartPlotCmd.Flags().StringSliceVar(&chartPlotMetrics, "metric", nil, "metric to chart (repeatable; default: all designated metrics)")
	chartPlotCmd.Flags().IntVar(&chartPlotWidth, "width", 0, "chart width in characters (default: $COLUMNS or 80)")
	chartPlotCmd.Flags().IntVar(&chartPlotHeight, "height", 0, "chart body height in rows (default: 14)")
	chartPlotCmd.Flags().StringVar(&chartPlotFrom, "from", "", "first date to show (YYYY-MM-DD)")
	chartPlotCmd.Flags().StringVar(&chartPlotTo, "to", "", "last date to show (YYYY-MM-DD)")

	chartBarSrc.register(chartBarCmd)
	chartBarCmd.Flags().StringVar(&chartBarMetric, "metric", query.DesignatedColumn, "metric to chart")
	chartBarCmd.Flags().IntVar(&chartBarWidth, "width", 0, "chart width in characters (default: $COLUMNS or 80)")
	chartBarCmd.Flags().IntVar(&chartBarLabel, "label-width", 0, "maximum bank-name width (default: 28)")

	chartSpecSrc.register(chartSpecCmd)
	chartSpecCmd.Flags().StringSliceVar(&chartSpecMetrics, "metric", nil, "metric to include (repeatable; default: all designated metrics)")

	for _, c := range []*cobra.Command{chartPlotCmd, chartBarCmd, chartSpecCmd} {
		_ = c.RegisterFlagCompletionFunc("metric", completeMetrics)
	}
	chartCmd.AddCommand(chartPlotCmd, chartBarCmd, chartSpecCmd)
	rootCmd.AddCommand(chartCmd)
}
