// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/derickschaefer/bankview/internal/analyze"
	"github.com/derickschaefer/bankview/internal/model"
	"github.com/derickschaefer/bankview/internal/pipeline"
	"github.com/derickschaefer/bankview/internal/store"
	"github.com/derickschaefer/bankview/internal/util"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
	FormatYAML  = "yaml"
)

// Formats lists every supported --format value.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD, FormatYAML}

// ValidFormat reports whether f is a supported format.
func ValidFormat(f string) bool {
	for _, v := range Formats {
		if v == f {
			return true
		}
	}
	return false
}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatYAML:
		return renderYAML(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── Grid ─────────────────────────────────────────────────────────────────────

// grid is the tabular form of a result shared by the table, markdown and
// delimited renderers. numeric marks right-aligned columns.
type grid struct {
	header  []string
	rows    [][]string
	numeric []bool
}

// toGrid converts a result payload into rows. compact selects the display
// form of numbers (comma grouped, relative times) over the exact form.
func toGrid(result *model.Result, compact bool) (*grid, error) {
	num := func(v float64) string {
		if compact {
			return util.FormatCompact(v)
		}
		return util.FormatValue(v)
	}

	switch d := result.Data.(type) {
	case model.BankList:
		return bankGrid(d), nil
	case *model.BankList:
		return bankGrid(*d), nil
	case *model.WideTable:
		return wideGrid(d, num), nil
	case model.ChartSet:
		return chartGrid(d), nil
	case []analyze.Summary:
		return summaryGrid(d, num, compact), nil
	case []store.SavedTable:
		return savedGrid(d, compact), nil
	case model.TableData:
		return plainGrid(d), nil
	case *model.TableData:
		return plainGrid(*d), nil
	}
	return nil, fmt.Errorf("render: no tabular form for %s data (%T)", result.Kind, result.Data)
}

func bankGrid(l model.BankList) *grid {
	inDefault := make(map[string]bool, len(l.Default))
	for _, n := range l.Default {
		inDefault[n] = true
	}
	g := &grid{header: []string{"RANK", "BANK", "DEFAULT"}, numeric: []bool{true, false, false}}
	for i, n := range l.Names {
		mark := ""
		if inDefault[n] {
			mark = "*"
		}
		g.rows = append(g.rows, []string{strconv.Itoa(i + 1), n, mark})
	}
	return g
}

func wideGrid(t *model.WideTable, num func(float64) string) *grid {
	g := &grid{header: append([]string(nil), t.Columns...)}
	for _, c := range t.Columns {
		g.numeric = append(g.numeric, !model.IsGroupingColumn(c))
	}
	for i, r := range t.Rows {
		row := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			if model.IsGroupingColumn(c) {
				row[j] = t.CellText(i, c)
			} else {
				row[j] = num(r.Value(c))
			}
		}
		g.rows = append(g.rows, row)
	}
	return g
}

func chartGrid(set model.ChartSet) *grid {
	g := &grid{
		header:  []string{"METRIC", "BANK", "POINTS", "MISSING", "FROM", "TO"},
		numeric: []bool{false, false, true, true, false, false},
	}
	for _, c := range set.Charts {
		for _, s := range c.Series {
			var missing int
			from, to := "", ""
			for _, p := range s.Points {
				if p.Value == nil {
					missing++
				}
				if p.Date == nil {
					continue
				}
				if from == "" || *p.Date < from {
					from = *p.Date
				}
				if *p.Date > to {
					to = *p.Date
				}
			}
			g.rows = append(g.rows, []string{
				c.Metric, s.Name,
				strconv.Itoa(len(s.Points)), strconv.Itoa(missing),
				from, to,
			})
		}
	}
	return g
}

func summaryGrid(ss []analyze.Summary, num func(float64) string, compact bool) *grid {
	g := &grid{
		header:  []string{"METRIC", "BANK", "COUNT", "MISSING", "FIRST", "LAST", "CHANGE", "CHANGE %", "MEAN", "MIN", "MAX"},
		numeric: []bool{false, false, true, true, true, true, true, true, true, true, true},
	}
	for _, s := range ss {
		pct := "."
		if !math.IsNaN(s.ChangePct) {
			if compact {
				pct = strconv.FormatFloat(s.ChangePct, 'f', 1, 64) + "%"
			} else {
				pct = util.FormatValue(s.ChangePct)
			}
		}
		g.rows = append(g.rows, []string{
			s.Metric, s.Entity,
			strconv.Itoa(s.Count), strconv.Itoa(s.Missing),
			num(s.First), num(s.Last), num(s.Change), pct,
			num(s.Mean), num(s.Min), num(s.Max),
		})
	}
	return g
}

func savedGrid(ts []store.SavedTable, compact bool) *grid {
	g := &grid{
		header:  []string{"ID", "NAME", "BANKS", "ROWS", "METRICS", "UPDATED"},
		numeric: []bool{false, false, true, true, true, false},
	}
	for _, t := range ts {
		id, updated := t.ID, t.UpdatedAt.Format(time.RFC3339)
		if compact {
			if len(id) > 8 {
				id = id[:8]
			}
			updated = humanize.Time(t.UpdatedAt)
		}
		rows, metrics := 0, 0
		if t.Table != nil {
			rows, metrics = len(t.Table.Rows), len(t.Table.MetricColumns())
		}
		g.rows = append(g.rows, []string{
			id, t.Name,
			strconv.Itoa(len(t.Banks)), strconv.Itoa(rows), strconv.Itoa(metrics),
			updated,
		})
	}
	return g
}

func plainGrid(d model.TableData) *grid {
	return &grid{header: d.Columns, rows: d.Rows, numeric: make([]bool, len(d.Columns))}
}

// ─── JSON / YAML ──────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// renderYAML goes through JSON so that every type's JSON form (null for
// missing values, column order) is kept; the node tree preserves key order.
func renderYAML(w io.Writer, result *model.Result) error {
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return fmt.Errorf("render yaml: %w", err)
	}
	blockStyle(&node)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch d := result.Data.(type) {
	case *model.WideTable:
		return pipeline.WriteJSONL(w, d)
	case model.BankList, *model.BankList:
		l, ok := d.(model.BankList)
		if !ok {
			l = *d.(*model.BankList)
		}
		inDefault := make(map[string]bool, len(l.Default))
		for _, n := range l.Default {
			inDefault[n] = true
		}
		for i, n := range l.Names {
			if err := enc.Encode(struct {
				Rank    int    `json:"rank"`
				Name    string `json:"name"`
				Default bool   `json:"default"`
			}{i + 1, n, inDefault[n]}); err != nil {
				return err
			}
		}
		return nil
	case model.ChartSet:
		for _, c := range d.Charts {
			if err := enc.Encode(c); err != nil {
				return err
			}
		}
		return nil
	case []analyze.Summary:
		for _, s := range d {
			if err := enc.Encode(s); err != nil {
				return err
			}
		}
		return nil
	case []store.SavedTable:
		for _, t := range d {
			if err := enc.Encode(t); err != nil {
				return err
			}
		}
		return nil
	case model.TableData:
		return plainJSONL(w, d)
	default:
		return enc.Encode(result.Data)
	}
}

// plainJSONL writes one object per row with keys in column order.
func plainJSONL(w io.Writer, d model.TableData) error {
	for _, r := range d.Rows {
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, c := range d.Columns {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(c)
			v := ""
			if i < len(r) {
				v = r[i]
			}
			val, _ := json.Marshal(v)
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteString("}\n")
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	g, err := toGrid(result, true)
	if err != nil {
		// Fallback: JSON
		return renderJSON(w, result)
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(g.header)
	tw.SetAutoFormatHeaders(false)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	align := make([]int, len(g.header))
	for i := range align {
		align[i] = tablewriter.ALIGN_LEFT
		if i < len(g.numeric) && g.numeric[i] {
			align[i] = tablewriter.ALIGN_RIGHT
		}
	}
	tw.SetColumnAlignment(align)
	tw.AppendBulk(g.rows)
	tw.Render()
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	if t, ok := result.Data.(*model.WideTable); ok {
		if sep == '\t' {
			return pipeline.WriteTSV(w, t)
		}
		return pipeline.WriteCSV(w, t)
	}

	cw := csv.NewWriter(w)
	cw.Comma = sep
	g, err := toGrid(result, false)
	if err != nil {
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	} else {
		_ = cw.Write(g.header)
		_ = cw.WriteAll(g.rows)
	}
	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	g, err := toGrid(result, true)
	if err != nil {
		return renderJSON(w, result)
	}
	cells := make([]string, len(g.header))
	for i, h := range g.header {
		cells[i] = mdEscape(h)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	for i := range cells {
		if i < len(g.numeric) && g.numeric[i] {
			cells[i] = "---:"
		} else {
			cells[i] = "---"
		}
	}
	fmt.Fprintf(w, "|%s|\n", strings.Join(cells, "|"))
	for _, r := range g.rows {
		out := make([]string, len(r))
		for i, c := range r {
			out[i] = mdEscape(c)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(out, " | "))
	}
	return nil
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		src := "live"
		if result.Stats.CacheHit {
			src = "cache"
		}
		fmt.Fprintf(w, "\n[%s • %d items • %dms • %s]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
			src,
		)
	}
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
