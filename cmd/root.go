// Package cmd implements the bankview CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/bankview/internal/app"
	"github.com/derickschaefer/bankview/internal/config"
	"github.com/derickschaefer/bankview/internal/logging"
	"github.com/derickschaefer/bankview/internal/render"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	Format    string
	Out       string
	Warehouse string
	DBPath    string
	Refresh   bool
	Timeout   string
	Rate      float64
	LogLevel  string
	Quiet     bool
	Verbose   bool
	Debug     bool
}

// rootCmd is the base command. Running `bankview` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "bankview",
	Short: "bankview — bank financials dashboard for the terminal",
	Long: `bankview compares the quarterly financials of the largest US banks.

It lists banks from a local financial-data warehouse, reshapes their
deposits and income into a wide table you can edit like a spreadsheet,
and charts each metric per bank in the terminal or over a local JSON API.

Financial data aggregated by Cybersyn from FDIC, FFIEC and others.

Quick start:
  bankview warehouse init         # create the warehouse
  bankview warehouse seed         # load demo filings (or: warehouse import extract.csv)
  bankview banks                  # largest banks, default selection starred
  bankview chart plot             # chart the default selection
  bankview edit --save mine       # edit the table, then: bankview chart plot --saved mine`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves config and applies CLI flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	// Apply CLI flag overrides
	cfg.Refresh = globalFlags.Refresh
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug

	if globalFlags.Format != "" {
		cfg.Format = globalFlags.Format
	}
	if globalFlags.Warehouse != "" {
		cfg.WarehousePath = globalFlags.Warehouse
	}
	if globalFlags.DBPath != "" {
		cfg.DBPath = globalFlags.DBPath
	}
	if globalFlags.Timeout != "" {
		d, err := time.ParseDuration(globalFlags.Timeout)
		if err != nil {
			return nil, fmt.Errorf("--timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if globalFlags.Rate > 0 {
		cfg.Rate = globalFlags.Rate
	}
	if globalFlags.LogLevel != "" {
		cfg.LogLevel = globalFlags.LogLevel
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	if !render.ValidFormat(cfg.Format) {
		return nil, fmt.Errorf("unknown format %q (valid: table, json, jsonl, csv, tsv, md, yaml)", cfg.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildDeps resolves config, installs the logger and constructs the
// dependency container. Called at the start of each command's RunE.
func buildDeps() (*app.Deps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logging.Init(level, os.Stderr)
	slog.Debug("config resolved", "warehouse", cfg.WarehousePath, "db", cfg.DBPath, "config_file", cfg.ConfigPath)
	return app.New(cfg), nil
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md|yaml (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.StringVar(&globalFlags.Warehouse, "warehouse", "",
		"warehouse database file (overrides env BANKVIEW_WAREHOUSE and config.json)")
	pf.StringVar(&globalFlags.DBPath, "db", "",
		"local store file (overrides env BANKVIEW_DB_PATH and config.json)")
	pf.BoolVar(&globalFlags.Refresh, "refresh", false,
		"refetch the bank listing even if the cached one is fresh")
	pf.StringVar(&globalFlags.Timeout, "timeout", "",
		"warehouse query timeout (e.g. 30s, 2m)")
	pf.Float64Var(&globalFlags.Rate, "rate", 0,
		"max warehouse queries per second (default: 20)")
	pf.StringVar(&globalFlags.LogLevel, "log-level", "",
		"log level: debug|info|warn|error (default: warn)")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show cache/timing stats after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"log warehouse queries (same as --log-level debug)")
}
