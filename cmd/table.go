package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/bankview/internal/model"
)

var tableSrc tableSource
var tableSave string

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Build the wide financials table for the selected banks",
	Long: `Query the warehouse for the selected banks and reshape the result into one
row per (date, bank) with one column per metric. Total deposits is always
the third column.

With no --bank flags the default selection (the largest banks) is used;
--no-default starts from an empty selection.

Examples:
  bankview table
  bankview table --bank chase --bank "wells fargo" --format csv --out banks.csv
  bankview table --save q4-review
  bankview table --saved q4-review --format md`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		lt, err := tableSrc.load(cmd.Context(), deps)
		if err != nil {
			return err
		}

		result := newResult(model.KindWideTable, "table", lt.table, len(lt.table.Rows), start)
		result.Stats.CacheHit = lt.cacheHit
		if len(lt.banks) == 0 {
			result.Warnings = append(result.Warnings, "empty selection: pass --bank to choose banks")
		}

		if tableSave != "" {
			st, err := saveTable(deps, tableSave, lt.table, lt.banks)
			if err != nil {
				return err
			}
			if !deps.Config.Quiet {
				fmt.Fprintf(os.Stderr, "✓ Saved table %q (%s)\n", st.Name, st.ID[:8])
			}
		}
		return emit(deps, result)
	},
}

func init() {
	tableSrc.register(tableCmd)
	tableCmd.Flags().StringVar(&tableSave, "save", "", "save the table under this name")
	rootCmd.AddCommand(tableCmd)
}
