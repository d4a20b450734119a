// Package editor is the terminal spreadsheet used to edit a wide table
// before it is charted. Session holds the editing logic; Run wraps it in a
// tview application.
package editor

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/derickschaefer/bankview/internal/model"
	"github.com/derickschaefer/bankview/internal/transform"
)

// ErrNothingToUndo is returned by Undo when the history is empty.
var ErrNothingToUndo = errors.New("nothing to undo")

// maxHistory bounds the undo buffer.
const maxHistory = 100

// Session is an editing session over a private copy of a wide table.
// Every change pushes a clone of the previous state onto the undo buffer.
type Session struct {
	table   *model.WideTable
	history []*model.WideTable
	changes int
}

// NewSession starts a session on a copy of t; t itself is never modified.
func NewSession(t *model.WideTable) *Session {
	return &Session{table: t.Clone()}
}

// Table returns the current state. Callers must not modify it.
func (s *Session) Table() *model.WideTable { return s.table }

// Modified reports whether the table differs from where it started.
func (s *Session) Modified() bool { return s.changes > 0 }

// UndoDepth is the number of changes that can be undone.
func (s *Session) UndoDepth() int { return len(s.history) }

func (s *Session) checkpoint() {
	s.history = append(s.history, s.table.Clone())
	if len(s.history) > maxHistory {
		s.history = s.history[1:]
	}
}

// Edit sets the cell at (row, column) from user text. A blank entry clears
// a metric or date cell; metrics accept comma-grouped numbers; dates accept
// any layout transform.ParseDate does.
func (s *Session) Edit(row int, column, text string) error {
	if row < 0 || row >= len(s.table.Rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	if !s.table.HasColumn(column) {
		return fmt.Errorf("no column %q", column)
	}
	text = strings.TrimSpace(text)

	switch column {
	case model.ColDate:
		var d time.Time
		if text != "" {
			var err error
			if d, err = transform.ParseDate(text); err != nil {
				return err
			}
		}
		s.checkpoint()
		s.table.Rows[row].Date = d
	case model.ColEntity:
		if text == "" {
			return errors.New("bank name cannot be blank")
		}
		s.checkpoint()
		s.table.Rows[row].Entity = text
	default:
		v, err := parseNumber(text)
		if err != nil {
			return fmt.Errorf("column %q: %w", column, err)
		}
		s.checkpoint()
		if err := s.table.SetValue(row, column, v); err != nil {
			s.history = s.history[:len(s.history)-1]
			return err
		}
	}
	s.changes++
	return nil
}

// DeleteColumn removes a column and every cell in it.
func (s *Session) DeleteColumn(column string) error {
	if !s.table.HasColumn(column) {
		return fmt.Errorf("no column %q", column)
	}
	s.checkpoint()
	s.table.DeleteColumn(column)
	s.changes++
	return nil
}

// Undo restores the state before the most recent change.
func (s *Session) Undo() error {
	if len(s.history) == 0 {
		return ErrNothingToUndo
	}
	last := len(s.history) - 1
	s.table = s.history[last]
	s.history = s.history[:last]
	s.changes--
	return nil
}

// parseNumber parses a metric entry. Blank and "." mean missing.
func parseNumber(text string) (float64, error) {
	if text == "" || text == "." {
		return math.NaN(), nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(text, ",", ""))
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", text)
	}
	return d.InexactFloat64(), nil
}
