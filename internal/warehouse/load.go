package warehouse

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/derickschaefer/bankview/internal/query"
	"github.com/derickschaefer/bankview/internal/util"
)

// Entity is one row of the entities table.
type Entity struct {
	IDRSSD string
	Name   string
}

// Point is one row of the timeseries table. Value is kept as text so that
// malformed source tokens survive the load unchanged.
type Point struct {
	IDRSSD       string
	Date         string // YYYY-MM-DD
	Variable     string
	VariableName string
	Value        string
	Unit         string
}

// Load inserts entities and points in a single transaction. Entities are
// upserted by id_rssd; points are appended.
func (c *Client) Load(ctx context.Context, entities []Entity, points []Point) error {
	return c.exec(ctx, "load", func(ctx context.Context) error {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback() //nolint:errcheck

		entStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO `+query.EntitiesTable+` (id_rssd, name) VALUES (?, ?)
			 ON CONFLICT(id_rssd) DO UPDATE SET name = excluded.name`)
		if err != nil {
			return err
		}
		defer entStmt.Close()
		for _, e := range entities {
			if _, err := entStmt.ExecContext(ctx, e.IDRSSD, e.Name); err != nil {
				return fmt.Errorf("entity %s: %w", e.IDRSSD, err)
			}
		}

		ptStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO `+query.TimeseriesTable+`
			 (id_rssd, date, variable, variable_name, value, unit) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer ptStmt.Close()
		for _, p := range points {
			if _, err := ptStmt.ExecContext(ctx,
				p.IDRSSD, p.Date, p.Variable, p.VariableName, nullable(p.Value), p.Unit); err != nil {
				return fmt.Errorf("point %s/%s/%s: %w", p.IDRSSD, p.Variable, p.Date, err)
			}
		}
		return tx.Commit()
	})
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return s
}

// ─── CSV import ───────────────────────────────────────────────────────────────

// ImportHeader is the required header of a long-format extract file.
var ImportHeader = []string{"id_rssd", "name", "date", "variable", "variable_name", "value", "unit"}

// ImportResult summarises an ImportCSV run.
type ImportResult struct {
	Entities int
	Points   int
	Skipped  int
}

// ImportCSV loads a long-format extract. Rows with the wrong field count or
// a blank id_rssd are skipped and reported together in the returned error;
// the remaining rows are still loaded.
func (c *Client) ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	var res ImportResult
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return res, fmt.Errorf("import: empty input")
		}
		return res, fmt.Errorf("import: reading header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return res, err
	}

	var (
		problems util.MultiError
		entities []Entity
		points   []Point
		seen     = make(map[string]bool)
		line     = 1
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return res, fmt.Errorf("import: line %d: %w", line, err)
		}
		if len(rec) != len(ImportHeader) {
			problems.Add(fmt.Errorf("line %d: expected %d fields, got %d", line, len(ImportHeader), len(rec)))
			res.Skipped++
			continue
		}
		id := strings.TrimSpace(rec[0])
		if id == "" {
			problems.Add(fmt.Errorf("line %d: blank id_rssd", line))
			res.Skipped++
			continue
		}
		if !seen[id] {
			seen[id] = true
			entities = append(entities, Entity{IDRSSD: id, Name: strings.TrimSpace(rec[1])})
		}
		points = append(points, Point{
			IDRSSD:       id,
			Date:         strings.TrimSpace(rec[2]),
			Variable:     strings.TrimSpace(rec[3]),
			VariableName: strings.TrimSpace(rec[4]),
			Value:        rec[5],
			Unit:         strings.TrimSpace(rec[6]),
		})
	}

	if err := c.Load(ctx, entities, points); err != nil {
		return res, err
	}
	res.Entities = len(entities)
	res.Points = len(points)
	return res, problems.Err()
}

func checkHeader(header []string) error {
	if len(header) != len(ImportHeader) {
		return fmt.Errorf("import: header must be %s", strings.Join(ImportHeader, ","))
	}
	for i, h := range header {
		if !strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), ImportHeader[i]) {
			return fmt.Errorf("import: header column %d is %q, want %q", i+1, h, ImportHeader[i])
		}
	}
	return nil
}
