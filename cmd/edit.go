package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/bankview/internal/editor"
	"github.com/derickschaefer/bankview/internal/model"
	"github.com/derickschaefer/bankview/internal/pipeline"
	"github.com/derickschaefer/bankview/internal/store"
)

var (
	editSrc  tableSource
	editSave string
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the wide table in a terminal spreadsheet",
	Long: `Opens the table in an interactive grid. Cells can be changed, metric columns
deleted, and edits undone. Saving (s) writes the edited table back:

  - over the saved table it was loaded from (--saved), or
  - under the --save name, or
  - to the --out file as CSV/TSV/JSONL (by extension), or
  - under a name derived from the current time.

Quitting (q) discards all edits. Charts built afterwards from the saved
table reflect the edits, and skip any designated metric whose column was
deleted.

Keys: arrows move, enter edits the selected cell, d deletes its column,
u undoes, s saves, q quits.`,
	Example: `  bankview edit --save mine
  bankview edit --saved mine
  bankview edit --bank chase --bank citibank --out edited.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if editSrc.file == "-" {
			return errors.New("edit needs the terminal for input; use --file with a path instead of -")
		}
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		lt, err := editSrc.load(cmd.Context(), deps)
		if err != nil {
			return err
		}
		out, err := editor.Run(lt.table, lt.describe())
		if err != nil {
			return err
		}
		if !out.Saved {
			if !deps.Config.Quiet {
				fmt.Fprintln(os.Stderr, "Edits discarded.")
			}
			return nil
		}

		banks := out.Table.Entities()
		var st store.SavedTable
		switch {
		case editSave != "":
			st, err = saveTable(deps, editSave, out.Table, banks)

		case lt.saved != nil:
			rec := *lt.saved
			rec.Table = out.Table
			rec.Banks = banks
			st, err = deps.Store.PutTable(rec)

		case globalFlags.Out != "":
			return writeEdited(deps.Config.Quiet, out.Table)

		default:
			name := "edit-" + time.Now().Format("20060102-150405")
			st, err = saveTable(deps, name, out.Table, banks)
		}
		if err != nil {
			return err
		}
		if !deps.Config.Quiet {
			fmt.Fprintf(os.Stderr, "✓ Saved table %q (%s, %d rows)\n", st.Name, st.ID[:8], len(st.Table.Rows))
		}
		return nil
	},
}

// writeEdited writes t to the --out file, picking the format from its
// extension (CSV unless .tsv or .jsonl).
func writeEdited(quiet bool, t *model.WideTable) error {
	w, closeFn, err := outputWriter(os.Stdout)
	if err != nil {
		return err
	}
	path := globalFlags.Out
	switch {
	case strings.HasSuffix(path, ".tsv"):
		err = pipeline.WriteTSV(w, t)
	case strings.HasSuffix(path, ".jsonl"):
		err = pipeline.WriteJSONL(w, t)
	default:
		err = pipeline.WriteCSV(w, t)
	}
	if err != nil {
		closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(os.Stderr, "✓ Wrote %d rows to %s\n", len(t.Rows), path)
	}
	return nil
}

func init() {
	editSrc.register(editCmd)
	editCmd.Flags().StringVar(&editSave, "save", "", "save the edited table under this name")
	rootCmd.AddCommand(editCmd)
}
