package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/bankview/internal/app"
	"github.com/derickschaefer/bankview/internal/util"
	"github.com/derickschaefer/bankview/internal/warehouse"
)

var warehouseCmd = &cobra.Command{
	Use:   "warehouse",
	Short: "Create and load the local financial-data warehouse",
	Long: `The warehouse is a SQLite database holding the two tables every query reads:
financial_institution_timeseries and financial_institution_entities.

  bankview warehouse init                 # create the schema
  bankview warehouse seed                 # deterministic demo filings
  bankview warehouse import extract.csv   # load a long-format extract`,
}

// openWarehouse opens (creating if needed) and migrates the warehouse.
func openWarehouse(cmd *cobra.Command, deps *app.Deps) error {
	if err := deps.RequireWarehouse(true); err != nil {
		return err
	}
	return deps.Warehouse.Migrate(cmd.Context())
}

// invalidateBanks drops the persisted bank listing after the warehouse
// contents change.
func invalidateBanks(deps *app.Deps) {
	if err := deps.RequireStore(); err != nil {
		slog.Warn("could not open store to invalidate bank list", "err", err)
		return
	}
	if err := deps.Store.DeleteBanks(); err != nil {
		slog.Warn("invalidating bank list", "err", err)
	}
}

var warehouseInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the warehouse schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := openWarehouse(cmd, deps); err != nil {
			return err
		}
		if !deps.Config.Quiet {
			fmt.Fprintf(os.Stdout, "✓ Warehouse ready at %s\n", deps.Warehouse.Path())
		}
		return nil
	},
}

var (
	seedValue uint64
	seedFrom  string
	seedTo    string
)

var warehouseSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load deterministic demo filings",
	Long: `Generates quarterly filings for a set of well-known banks, including the
occasional restated (duplicate) filing and malformed value, so the whole
reshape pipeline is exercised. The same --seed always produces the same data.`,
	Example: `  bankview warehouse seed
  bankview warehouse seed --seed 7 --from 2020-03-31 --to 2024-12-31`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseDateFlag("from", seedFrom)
		if err != nil {
			return err
		}
		to, err := parseDateFlag("to", seedTo)
		if err != nil {
			return err
		}
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := openWarehouse(cmd, deps); err != nil {
			return err
		}

		res, err := deps.Warehouse.Seed(cmd.Context(), warehouse.SeedOptions{Start: from, End: to, Seed: seedValue})
		if err != nil {
			return err
		}
		invalidateBanks(deps)
		if !deps.Config.Quiet {
			fmt.Fprintf(os.Stdout, "✓ Seeded %d banks, %d points\n", res.Entities, res.Points)
		}
		return nil
	},
}

var warehouseImportCmd = &cobra.Command{
	Use:   "import <file.csv|->",
	Short: "Import a long-format CSV extract",
	Long: `Imports a CSV extract with the header

  id_rssd,name,date,variable,variable_name,value,unit

Entities are upserted by id_rssd. Malformed rows are skipped and listed;
the rest of the file is still loaded. Use - to read from stdin.`,
	Example: `  bankview warehouse import extract.csv
  gunzip -c extract.csv.gz | bankview warehouse import -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := openWarehouse(cmd, deps); err != nil {
			return err
		}

		res, err := deps.Warehouse.ImportCSV(cmd.Context(), r)
		var skipped *util.MultiError
		if err != nil && !errors.As(err, &skipped) {
			return err
		}
		invalidateBanks(deps)
		if skipped != nil {
			for _, e := range skipped.Unwrap() {
				fmt.Fprintf(os.Stderr, "⚠  skipped %v\n", e)
			}
		}
		if !deps.Config.Quiet {
			fmt.Fprintf(os.Stdout, "✓ Imported %d banks, %d points (%d rows skipped)\n", res.Entities, res.Points, res.Skipped)
		}
		return nil
	},
}

func init() {
	warehouseSeedCmd.Flags().Uint64Var(&seedValue, "seed", 1, "random seed")
	warehouseSeedCmd.Flags().StringVar(&seedFrom, "from", "", "first quarter end (default 2021-03-31)")
	warehouseSeedCmd.Flags().StringVar(&seedTo, "to", "", "last quarter end (default 2023-12-31)")

	warehouseCmd.AddCommand(warehouseInitCmd, warehouseSeedCmd, warehouseImportCmd)
	rootCmd.AddCommand(warehouseCmd)
}
