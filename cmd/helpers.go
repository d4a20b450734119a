package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/bankview/internal/app"
	"github.com/derickschaefer/bankview/internal/dashboard"
	"github.com/derickschaefer/bankview/internal/model"
	"github.com/derickschaefer/bankview/internal/pipeline"
	"github.com/derickschaefer/bankview/internal/render"
	"github.com/derickschaefer/bankview/internal/store"
	"github.com/derickschaefer/bankview/internal/transform"
)

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// outputWriter returns the writer commands print to: def, or the --out file
// when one is set. The returned close func must always be called.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	if dir := filepath.Dir(globalFlags.Out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// newResult wraps data in a Result envelope stamped with the elapsed time
// since start.
func newResult(kind, command string, data any, items int, start time.Time) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Stats: model.ResultStats{
			Items:      items,
			DurationMs: time.Since(start).Milliseconds(),
		},
	}
}

// emit renders result in the resolved format to stdout (or --out) and
// writes warnings and stats to stderr.
func emit(deps *app.Deps, result *model.Result) error {
	if deps.Config.Quiet {
		return nil
	}
	w, closeFn, err := outputWriter(os.Stdout)
	if err != nil {
		return err
	}
	if err := render.Render(w, result, resolveFormat(deps.Config.Format)); err != nil {
		closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	render.PrintFooter(os.Stderr, result, deps.Config.Verbose)
	return nil
}

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

// printKVTable prints key/value pairs as a two-column table.
func printKVTable(w io.Writer, pairs [][2]string) {
	printSimpleTable(w, []string{"KEY", "VALUE"}, func(add func(...string)) {
		for _, p := range pairs {
			add(p[0], p[1])
		}
	})
}

// parseDateFlag parses an optional YYYY-MM-DD flag value.
func parseDateFlag(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := transform.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

// ─── Table Sources ────────────────────────────────────────────────────────────

// tableSource is the set of flags every table-consuming command shares.
// Exactly one source applies, checked in order: --saved, --file (- reads
// stdin), then the warehouse with --bank (or the default selection).
type tableSource struct {
	banks     []string
	noDefault bool
	saved     string
	file      string
}

// loadedTable is a table together with where it came from.
type loadedTable struct {
	table    *model.WideTable
	banks    []string
	saved    *store.SavedTable
	cacheHit bool
}

func (s *tableSource) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&s.banks, "bank", nil,
		"bank to include (repeatable; exact, case-insensitive or fuzzy match against the largest banks)")
	f.BoolVar(&s.noDefault, "no-default", false,
		"start from an empty selection instead of the default banks")
	f.StringVar(&s.saved, "saved", "",
		"use a saved table (name or ID prefix) instead of querying the warehouse")
	f.StringVar(&s.file, "file", "",
		"read the table from a CSV/TSV/JSONL file (- for stdin)")
	_ = cmd.RegisterFlagCompletionFunc("bank", completeBanks)
	_ = cmd.RegisterFlagCompletionFunc("saved", completeSaved)
}

func (s *tableSource) load(ctx context.Context, deps *app.Deps) (*loadedTable, error) {
	switch {
	case s.saved != "":
		if err := deps.RequireStore(); err != nil {
			return nil, err
		}
		st, err := deps.Store.FindTable(s.saved)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("no saved table matches %q (see 'bankview tables list')", s.saved)
			}
			return nil, err
		}
		return &loadedTable{table: st.Table, banks: st.Banks, saved: &st}, nil

	case s.file == "-":
		t, err := pipeline.ReadTable(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return &loadedTable{table: t, banks: t.Entities()}, nil

	case s.file != "":
		t, err := pipeline.ReadFile(s.file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.file, err)
		}
		return &loadedTable{table: t, banks: t.Entities()}, nil
	}

	if err := deps.RequireDashboard(); err != nil {
		return nil, err
	}
	if deps.Config.Refresh {
		if _, err := deps.Banks.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	list, hit, err := deps.Dashboard.LargestBanks(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	switch {
	case len(s.banks) > 0:
		if names, err = dashboard.ResolveBanks(s.banks, list.Names); err != nil {
			return nil, err
		}
	case !s.noDefault:
		names = list.Default
	}

	t, err := deps.Dashboard.Table(ctx, names)
	if err != nil {
		return nil, err
	}
	return &loadedTable{table: t, banks: names, cacheHit: hit}, nil
}

// describe names the source for titles and log lines.
func (l *loadedTable) describe() string {
	if l.saved != nil {
		return l.saved.Name
	}
	if len(l.banks) == 0 {
		return "empty selection"
	}
	return strings.Join(l.banks, ", ")
}

// saveTable stores t under name, replacing an existing table with exactly
// that name.
func saveTable(deps *app.Deps, name string, t *model.WideTable, banks []string) (store.SavedTable, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.SavedTable{}, errors.New("table name must not be empty")
	}
	if err := deps.RequireStore(); err != nil {
		return store.SavedTable{}, err
	}
	rec := store.SavedTable{Name: name, Banks: banks, Table: t}
	all, err := deps.Store.ListTables()
	if err != nil {
		return store.SavedTable{}, err
	}
	for _, st := range all {
		if st.Name == name {
			rec.ID = st.ID
			break
		}
	}
	return deps.Store.PutTable(rec)
}
