package editor

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/derickschaefer/bankview/internal/model"
	"github.com/derickschaefer/bankview/internal/util"
)

const helpText = "[gray]arrows move · enter edit · d delete column · u undo · s save · q quit"

// Outcome is what the user chose when leaving the editor.
type Outcome struct {
	Table *model.WideTable
	Saved bool
}

type ui struct {
	app     *tview.Application
	grid    *tview.Table
	input   *tview.InputField
	status  *tview.TextView
	layout  *tview.Flex
	session *Session
	saved   bool
}

// Run opens the spreadsheet on a copy of t and blocks until the user saves
// (s) or quits (q). The returned table is nil unless the user saved.
func Run(t *model.WideTable, title string) (Outcome, error) {
	u := &ui{
		app:     tview.NewApplication(),
		grid:    tview.NewTable().SetFixed(1, 0).SetSelectable(true, true),
		input:   tview.NewInputField(),
		status:  tview.NewTextView().SetDynamicColors(true),
		session: NewSession(t),
	}
	u.grid.SetBorder(true).SetTitle(" " + title + " ")
	u.input.SetFieldBackgroundColor(tcell.ColorDimGray)
	u.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(u.grid, 0, 1, true).
		AddItem(u.input, 1, 0, false).
		AddItem(u.status, 1, 0, false)

	u.grid.SetInputCapture(u.capture)
	u.populate()
	u.grid.Select(1, 0)
	u.setStatus(helpText)

	if err := u.app.SetRoot(u.layout, true).EnableMouse(true).Run(); err != nil {
		return Outcome{}, fmt.Errorf("editor: %w", err)
	}
	if !u.saved {
		return Outcome{}, nil
	}
	return Outcome{Table: u.session.Table(), Saved: true}, nil
}

// populate redraws the grid from the session's table.
func (u *ui) populate() {
	u.grid.Clear()
	t := u.session.Table()
	for c, name := range t.Columns {
		u.grid.SetCell(0, c, tview.NewTableCell("[yellow::b]"+tview.Escape(name)).
			SetSelectable(false).SetAlign(tview.AlignCenter))
	}
	for r := range t.Rows {
		for c, name := range t.Columns {
			text := t.CellText(r, name)
			align := tview.AlignLeft
			if !model.IsGroupingColumn(name) {
				align = tview.AlignRight
				if v := t.Rows[r].Value(name); text != "" {
					text = util.FormatCompact(v)
				} else {
					text = "[gray]."
				}
			}
			u.grid.SetCell(r+1, c, tview.NewTableCell(text).SetAlign(align))
		}
	}
}

func (u *ui) setStatus(msg string) {
	state := ""
	if u.session.Modified() {
		state = " [red]modified"
	}
	u.status.SetText(fmt.Sprintf("%s  [gray][undo %d]%s", msg, u.session.UndoDepth(), state))
}

// selected returns the table row index and column name under the cursor.
func (u *ui) selected() (int, string, bool) {
	r, c := u.grid.GetSelection()
	t := u.session.Table()
	if r < 1 || r > len(t.Rows) || c < 0 || c >= len(t.Columns) {
		return 0, "", false
	}
	return r - 1, t.Columns[c], true
}

func (u *ui) capture(e *tcell.EventKey) *tcell.EventKey {
	switch {
	case e.Key() == tcell.KeyEnter:
		u.beginEdit()
		return nil
	case e.Key() == tcell.KeyRune && e.Rune() == 'd':
		u.deleteColumn()
		return nil
	case e.Key() == tcell.KeyRune && e.Rune() == 'u':
		if err := u.session.Undo(); err != nil {
			u.setStatus("[gray]" + err.Error())
			return nil
		}
		u.refresh()
		u.setStatus("undone")
		return nil
	case e.Key() == tcell.KeyRune && e.Rune() == 's':
		u.saved = true
		u.app.Stop()
		return nil
	case e.Key() == tcell.KeyRune && e.Rune() == 'q', e.Key() == tcell.KeyCtrlC:
		u.app.Stop()
		return nil
	}
	return e
}

func (u *ui) beginEdit() {
	row, col, ok := u.selected()
	if !ok {
		return
	}
	u.input.SetLabel(fmt.Sprintf("%s [%d]: ", col, row+1))
	u.input.SetText(u.session.Table().CellText(row, col))
	u.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			if err := u.session.Edit(row, col, u.input.GetText()); err != nil {
				u.input.SetLabel("[red]" + err.Error() + ": ")
				return
			}
			u.refresh()
			u.setStatus(helpText)
		}
		u.input.SetLabel("").SetText("")
		u.app.SetFocus(u.grid)
	})
	u.app.SetFocus(u.input)
}

func (u *ui) deleteColumn() {
	_, col, ok := u.selected()
	if !ok {
		return
	}
	if err := u.session.DeleteColumn(col); err != nil {
		u.setStatus("[red]" + err.Error())
		return
	}
	u.refresh()
	u.setStatus(fmt.Sprintf("deleted column %q", col))
}

// refresh redraws and keeps the cursor inside the grid.
func (u *ui) refresh() {
	r, c := u.grid.GetSelection()
	u.populate()
	t := u.session.Table()
	r = min(max(r, 1), max(len(t.Rows), 1))
	c = min(max(c, 0), max(len(t.Columns)-1, 0))
	u.grid.Select(r, c)
}
