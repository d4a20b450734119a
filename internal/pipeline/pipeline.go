// Package pipeline reads and writes wide tables on pipes and files, the
// hand-off format to and from the editing surface.
//
// Input formats are sniffed: a table JSON document ({"columns":..,"rows":..}),
// JSONL (one object per row), TSV, or CSV. Blank cells are missing values,
// blank dates are missing dates, and grouping columns the user deleted are
// simply absent.
package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/derickschaefer/bankview/internal/model"
	"github.com/derickschaefer/bankview/internal/transform"
)

// Format names accepted by ReadTableAs.
const (
	FormatAuto  = ""
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatJSONL = "jsonl"
	FormatJSON  = "json"
)

// ReadTable reads a wide table from r, sniffing the format.
func ReadTable(r io.Reader) (*model.WideTable, error) {
	return ReadTableAs(r, FormatAuto)
}

// ReadTableAs reads a wide table from r in the given format.
func ReadTableAs(r io.Reader, format string) (*model.WideTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("no table read from input (is stdin empty?)")
	}
	if format == FormatAuto {
		format = Sniff(data)
	}
	switch format {
	case FormatJSON:
		var t model.WideTable
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("invalid table JSON: %w", err)
		}
		return &t, nil
	case FormatJSONL:
		return readJSONL(data)
	case FormatTSV:
		return readDelimited(data, '\t')
	case FormatCSV:
		return readDelimited(data, ',')
	default:
		return nil, fmt.Errorf("unknown input format %q (valid: csv, tsv, jsonl, json)", format)
	}
}

// Sniff guesses the format of data.
func Sniff(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if json.Unmarshal(trimmed, &probe) == nil {
			_, hasCols := probe["columns"]
			_, hasRows := probe["rows"]
			if hasCols && hasRows {
				return FormatJSON
			}
		}
		return FormatJSONL
	}
	header := trimmed
	if i := bytes.IndexByte(header, '\n'); i >= 0 {
		header = header[:i]
	}
	if bytes.Count(header, []byte("\t")) > bytes.Count(header, []byte(",")) {
		return FormatTSV
	}
	return FormatCSV
}

// ─── Delimited ────────────────────────────────────────────────────────────────

func readDelimited(data []byte, delim rune) (*model.WideTable, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delim
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("line 1: reading header: %w", err)
	}
	cols := make([]string, len(header))
	seen := make(map[string]bool)
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			return nil, fmt.Errorf("line 1: column %d has no name", i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("line 1: duplicate column %q", h)
		}
		seen[h] = true
		cols[i] = h
	}

	t := model.NewWideTable(cols)
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != len(cols) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, len(cols), len(rec))
		}
		row := model.WideRow{Values: make(map[string]float64)}
		for i, c := range cols {
			if err := setCell(&row, c, rec[i]); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// setCell parses one text cell into row.
func setCell(row *model.WideRow, col, text string) error {
	text = strings.TrimSpace(text)
	switch col {
	case model.ColDate:
		if text == "" {
			return nil
		}
		d, err := transform.ParseDate(text)
		if err != nil {
			return err
		}
		row.Date = d
	case model.ColEntity:
		row.Entity = text
	default:
		if text == "" || text == "." {
			return nil
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsInf(v, 0) {
			return fmt.Errorf("column %q: invalid number %q", col, text)
		}
		if !math.IsNaN(v) {
			row.Values[col] = v
		}
	}
	return nil
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// readJSONL reads one JSON object per line. Column order follows key order
// of the first object; keys first seen on later lines are appended.
func readJSONL(data []byte) (*model.WideTable, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	t := model.NewWideTable(nil)
	known := make(map[string]bool)
	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		keys, vals, err := decodeOrdered(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		row := model.WideRow{Values: make(map[string]float64)}
		for i, k := range keys {
			if !known[k] {
				known[k] = true
				t.Columns = append(t.Columns, k)
			}
			if err := setJSONCell(&row, k, vals[i]); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return t, nil
}

// decodeOrdered decodes a flat JSON object, keeping key order.
func decodeOrdered(line string) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(strings.NewReader(line))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("expected an object")
	}
	var keys []string
	var vals []json.RawMessage
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		vals = append(vals, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, vals, nil
}

func setJSONCell(row *model.WideRow, col string, raw json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("column %q: %w", col, err)
	}
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return setCell(row, col, x)
	case float64:
		if model.IsGroupingColumn(col) {
			return fmt.Errorf("column %q: expected a string, got a number", col)
		}
		row.Values[col] = x
		return nil
	default:
		return fmt.Errorf("column %q: unexpected value type %T", col, v)
	}
}

// ─── Writers ──────────────────────────────────────────────────────────────────

// WriteCSV writes t as comma-separated values with a header row.
func WriteCSV(w io.Writer, t *model.WideTable) error {
	return writeDelimited(w, t, ',')
}

// WriteTSV writes t as tab-separated values with a header row.
func WriteTSV(w io.Writer, t *model.WideTable) error {
	return writeDelimited(w, t, '\t')
}

func writeDelimited(w io.Writer, t *model.WideTable, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns))
	for i := range t.Rows {
		for j, c := range t.Columns {
			rec[j] = t.CellText(i, c)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSONL writes one JSON object per row, keys in column order.
// Missing cells are null.
func WriteJSONL(w io.Writer, t *model.WideTable) error {
	bw := bufio.NewWriter(w)
	for _, r := range t.Rows {
		bw.WriteByte('{')
		for j, c := range t.Columns {
			if j > 0 {
				bw.WriteByte(',')
			}
			k, _ := json.Marshal(c)
			bw.Write(k)
			bw.WriteByte(':')
			var v interface{}
			switch c {
			case model.ColDate:
				if r.HasDate() {
					v = r.Date.Format(model.DateLayout)
				}
			case model.ColEntity:
				v = r.Entity
			default:
				if f := r.Value(c); !math.IsNaN(f) {
					v = f
				}
			}
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			bw.Write(b)
		}
		bw.WriteString("}\n")
	}
	return bw.Flush()
}

// ─── Files ────────────────────────────────────────────────────────────────────

// ReadFile reads a wide table from path, using the extension as a format
// hint when it is one of .csv, .tsv, .jsonl or .json.
func ReadFile(path string) (*model.WideTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTableAs(f, formatFromExt(path))
}

func formatFromExt(path string) string {
	switch {
	case strings.HasSuffix(path, ".csv"):
		return FormatCSV
	case strings.HasSuffix(path, ".tsv"):
		return FormatTSV
	case strings.HasSuffix(path, ".jsonl"):
		return FormatJSONL
	case strings.HasSuffix(path, ".json"):
		return FormatJSON
	}
	return FormatAuto
}

// IsTTY returns true if stdout is a terminal (not a pipe).
func IsTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// StdinIsPiped returns true if stdin is a pipe or file rather than a terminal.
func StdinIsPiped() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) == 0
}
