// Package warehouse implements the client for the SQLite bank-financials
// warehouse. All methods are context-aware, respect the shared rate limiter,
// and retry only on transient lock contention (SQLITE_BUSY, SQLITE_LOCKED).
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"golang.org/x/time/rate"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/derickschaefer/bankview/internal/model"
	"github.com/derickschaefer/bankview/internal/query"
)

const (
	maxRetries = 4
	// incomeColumns is the width of every long-format result row.
	incomeColumns = 5
)

// Options configures a Client.
type Options struct {
	Timeout    time.Duration // per-query deadline; zero means none
	RatePerSec float64       // query rate; zero means unlimited
	Debug      bool
}

// Client is the warehouse client.
type Client struct {
	path    string
	db      *sql.DB
	limiter *rate.Limiter
	timeout time.Duration
	debug   bool
}

// Open opens (creating if needed) the warehouse file at path.
func Open(path string, opts Options) (*Client, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening warehouse %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	limit := rate.Inf
	burst := 1
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
		if b := int(opts.RatePerSec); b > 1 {
			burst = b
		}
	}
	return &Client{
		path:    path,
		db:      db,
		limiter: rate.NewLimiter(limit, burst),
		timeout: opts.Timeout,
		debug:   opts.Debug,
	}, nil
}

// Close releases the underlying database handle.
func (c *Client) Close() error {
	return c.db.Close()
}

// Path returns the warehouse file path.
func (c *Client) Path() string { return c.path }

// ─── Schema ───────────────────────────────────────────────────────────────────

const schema = `
CREATE TABLE IF NOT EXISTS ` + query.EntitiesTable + ` (
	id_rssd TEXT PRIMARY KEY,
	name    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ` + query.TimeseriesTable + ` (
	id_rssd       TEXT NOT NULL,
	date          TEXT NOT NULL,
	variable      TEXT NOT NULL,
	variable_name TEXT NOT NULL,
	value         NUMERIC,
	unit          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_timeseries_lookup
	ON ` + query.TimeseriesTable + ` (variable_name, date);
CREATE INDEX IF NOT EXISTS idx_timeseries_rank
	ON ` + query.TimeseriesTable + ` (variable, date);
`

// Migrate creates the warehouse tables if they do not exist.
func (c *Client) Migrate(ctx context.Context) error {
	return c.exec(ctx, "migrate", func(ctx context.Context) error {
		_, err := c.db.ExecContext(ctx, schema)
		return err
	})
}

// ─── Queries ──────────────────────────────────────────────────────────────────

// Query runs a long-format query and returns its rows as raw text.
// The result must have exactly the columns date, value, unit,
// variable_name, name in that order.
func (c *Client) Query(ctx context.Context, text string) ([]model.RawRow, error) {
	var out []model.RawRow
	err := c.exec(ctx, "query", func(ctx context.Context) error {
		out = out[:0]
		rows, err := c.db.QueryContext(ctx, text)
		if err != nil {
			return err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		if len(cols) != incomeColumns {
			return fmt.Errorf("expected %d columns, got %d (%v)", incomeColumns, len(cols), cols)
		}

		vals := make([]any, incomeColumns)
		ptrs := make([]any, incomeColumns)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		for rows.Next() {
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}
			out = append(out, model.RawRow{
				Date:         asText(vals[0]),
				Value:        asText(vals[1]),
				Unit:         asText(vals[2]),
				VariableName: asText(vals[3]),
				Name:         asText(vals[4]),
			})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListBanks runs a ranked entity-listing query and returns the first column
// with duplicates dropped. Rank order is preserved.
func (c *Client) ListBanks(ctx context.Context, text string) ([]string, error) {
	var names []string
	err := c.exec(ctx, "list banks", func(ctx context.Context) error {
		names = names[:0]
		rows, err := c.db.QueryContext(ctx, text)
		if err != nil {
			return err
		}
		defer rows.Close()

		seen := make(map[string]bool)
		for rows.Next() {
			var v any
			if err := rows.Scan(&v); err != nil {
				return err
			}
			name := asText(v)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// ─── Low-level ────────────────────────────────────────────────────────────────

// exec runs fn under the rate limiter and per-query timeout, retrying with
// exponential backoff while the database reports lock contention.
func (c *Client) exec(ctx context.Context, op string, fn func(context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))*100) * time.Millisecond
			slog.Debug("retrying after backoff", "op", op, "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		start := time.Now()
		err := c.withTimeout(ctx, fn)
		if c.debug {
			slog.Debug("warehouse "+op, "path", c.path, "elapsed", time.Since(start), "err", err)
		}
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return fmt.Errorf("warehouse %s: %w", op, err)
		}
		lastErr = err
	}
	return fmt.Errorf("warehouse %s: after %d attempts: %w", op, maxRetries, lastErr)
}

func (c *Client) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if c.timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return fn(ctx)
}

// IsTransient reports whether err is lock contention worth retrying.
func IsTransient(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// asText renders a scanned driver value the way it would appear in an
// extract file. NULL is the empty string.
func asText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
