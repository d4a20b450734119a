package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/bankview/internal/model"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Manage saved tables",
	Long: `Saved tables are wide tables kept in the local store, created by
'bankview table --save' or by saving in 'bankview edit'. Any table command
reads one back with --saved NAME (or an ID prefix).`,
}

var tablesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved tables, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.RequireStore(); err != nil {
			return err
		}

		start := time.Now()
		tables, err := deps.Store.ListTables()
		if err != nil {
			return err
		}
		result := newResult(model.KindSavedTable, "tables list", tables, len(tables), start)
		result.Stats.CacheHit = true
		return emit(deps, result)
	},
}

var tablesShowCmd = &cobra.Command{
	Use:   "show <name|id>",
	Short: "Print a saved table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.RequireStore(); err != nil {
			return err
		}

		start := time.Now()
		st, err := deps.Store.FindTable(args[0])
		if err != nil {
			return err
		}
		result := newResult(model.KindWideTable, "tables show", st.Table, len(st.Table.Rows), start)
		result.Stats.CacheHit = true
		return emit(deps, result)
	},
}

var tablesDeleteCmd = &cobra.Command{
	Use:   "delete <name|id>",
	Short: "Delete a saved table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.RequireStore(); err != nil {
			return err
		}

		st, err := deps.Store.FindTable(args[0])
		if err != nil {
			return err
		}
		if err := deps.Store.DeleteTable(st.ID); err != nil {
			return err
		}
		if !deps.Config.Quiet {
			fmt.Fprintf(os.Stdout, "✓ Deleted table %q (%s)\n", st.Name, st.ID[:8])
		}
		return nil
	},
}

func init() {
	tablesCmd.AddCommand(tablesListCmd, tablesShowCmd, tablesDeleteCmd)
	rootCmd.AddCommand(tablesCmd)
}
