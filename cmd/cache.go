package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/bankview/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the local store",
	Long: `Commands for inspecting and clearing the local bbolt database.

The store holds the persisted bank listing (refreshed after bank_ttl) and
your saved tables. Saved tables persist until you delete them.`,
}

// ─── cache stats ──────────────────────────────────────────────────────────────

var cacheStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show row counts and sizes for each bucket",
	Example: `  bankview cache stats`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		stats, err := deps.Store.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Database: %s\n\n", deps.Store.Path())
		printSimpleTable(out, []string{"BUCKET", "ROWS", "SIZE"}, func(add func(...string)) {
			for _, s := range stats {
				add(s.Name, fmt.Sprintf("%d", s.Count), humanize.Bytes(uint64(s.Bytes)))
			}
		})

		list, ok, err := deps.Store.GetBanks()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "\nBank list: not cached")
			return nil
		}
		state := "fresh"
		if time.Since(list.FetchedAt) >= deps.Config.BankTTL {
			state = "stale"
		}
		fmt.Fprintf(out, "\nBank list: %d banks, fetched %s (%s, ttl %s)\n",
			len(list.Names), humanize.Time(list.FetchedAt), state, deps.Config.BankTTL)
		return nil
	},
}

// ─── cache clear ──────────────────────────────────────────────────────────────

var (
	cacheClearAll    bool
	cacheClearBucket string
)

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete entries from the local store",
	Long: `Delete entries from one or all buckets. Clearing "banks" forces the next
command to query the warehouse for the listing; clearing "tables" deletes
every saved table.

bbolt does not shrink the database file after clearing. Run
'bankview cache compact' to reclaim disk space.`,
	Example: `  bankview cache clear --bucket banks
  bankview cache clear --all`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cacheClearAll && cacheClearBucket == "" {
			return fmt.Errorf("specify --all or --bucket <name>\n\nBuckets: %s", strings.Join(store.AllBuckets, ", "))
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		out := cmd.OutOrStdout()
		if cacheClearAll {
			if err := deps.Store.ClearAll(); err != nil {
				return fmt.Errorf("clearing all buckets: %w", err)
			}
			fmt.Fprintln(out, "✓ Cleared all buckets")
			fmt.Fprintln(out, "  Run 'bankview cache compact' to reclaim disk space.")
			return nil
		}

		if err := deps.Store.ClearBucket(cacheClearBucket); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Cleared bucket %q\n", cacheClearBucket)
		fmt.Fprintln(out, "  Run 'bankview cache compact' to reclaim disk space.")
		return nil
	},
}

// ─── cache compact ────────────────────────────────────────────────────────────

var cacheCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the database file to reclaim freed disk space",
	Long: `Compact copies all live data into a fresh file and swaps it into place,
recovering space freed by earlier deletes. The store stays usable.`,
	Example: `  bankview cache compact`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Compacting %s ...\n", deps.Store.Path())

		before, after, err := deps.Store.Compact()
		if err != nil {
			return fmt.Errorf("compaction failed: %w", err)
		}

		fmt.Fprintf(out, "✓ Compaction complete\n")
		fmt.Fprintf(out, "  Before: %s\n", humanize.Bytes(uint64(before)))
		fmt.Fprintf(out, "  After:  %s\n", humanize.Bytes(uint64(after)))
		if saved := before - after; saved > 0 {
			fmt.Fprintf(out, "  Saved:  %s\n", humanize.Bytes(uint64(saved)))
		} else {
			fmt.Fprintln(out, "  No space reclaimed (database was already compact).")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheCompactCmd)

	cacheClearCmd.Flags().BoolVar(&cacheClearAll, "all", false, "clear all buckets")
	cacheClearCmd.Flags().StringVar(&cacheClearBucket, "bucket", "",
		"clear a specific bucket: "+strings.Join(store.AllBuckets, "|"))
}

