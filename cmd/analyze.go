package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/bankview/internal/analyze"
	"github.com/derickschaefer/bankview/internal/model"
)

var (
	analyzeSrc     tableSource
	analyzeMetrics []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Per-bank summary statistics for each metric",
	Long: `Summarises each metric column per bank: observation count, missing values,
first and last values with their change over the period, mean, median,
standard deviation, min and max. Missing values are excluded from every
statistic except the missing count.`,
	Example: `  bankview analyze
  bankview analyze --metric "Net Operating Income" --format md
  bankview analyze --saved q4-review --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		lt, err := analyzeSrc.load(cmd.Context(), deps)
		if err != nil {
			return err
		}
		summaries, err := analyze.Summarize(lt.table, analyzeMetrics)
		if err != nil {
			return err
		}
		result := newResult(model.KindSummary, "analyze", summaries, len(summaries), start)
		result.Stats.CacheHit = lt.cacheHit
		return emit(deps, result)
	},
}

func init() {
	analyzeSrc.register(analyzeCmd)
	analyzeCmd.Flags().StringSliceVar(&analyzeMetrics, "metric", nil, "metric to summarise (repeatable; default: every metric column)")
	_ = analyzeCmd.RegisterFlagCompletionFunc("metric", completeMetrics)
	rootCmd.AddCommand(analyzeCmd)
}
