package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/bankview/internal/model"
)

var banksCmd = &cobra.Command{
	Use:   "banks",
	Short: "List the largest banks by total deposits",
	Long: `List the banks eligible for selection, largest by total deposits first.
The default selection is marked with *.

The listing is cached for bank_ttl (default 10m) in memory and in the local
store; --refresh queries the warehouse again.

Examples:
  bankview banks
  bankview banks --refresh --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		if err := deps.RequireDashboard(); err != nil {
			return err
		}
		start := time.Now()
		ctx := cmd.Context()
		if deps.Config.Refresh {
			if _, err := deps.Banks.Refresh(ctx); err != nil {
				return err
			}
		}
		list, hit, err := deps.Dashboard.LargestBanks(ctx)
		if err != nil {
			return err
		}

		result := newResult(model.KindBanks, "banks", list, len(list.Names), start)
		result.Stats.CacheHit = hit
		if len(list.Names) == 0 {
			opts := deps.QueryOptions()
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("no banks filed %s above %g on %s", opts.RankVariable, opts.MinRankValue, opts.RankDate))
		}
		return emit(deps, result)
	},
}

func init() {
	rootCmd.AddCommand(banksCmd)
}
