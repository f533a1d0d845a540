// Package dataset provides a small, read-only columnar view over CSV data.
//
// A Frame is immutable once loaded. Every transformation returns a new Frame
// that shares the underlying records, so frames can be handed to concurrently
// running handlers without copying.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
)

// ErrUnknownColumn is returned when a column name is not part of the schema.
var ErrUnknownColumn = errors.New("unknown column")

// Frame is an immutable table of string records with a fixed schema.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New builds a frame from a header and its records.
// Short records are padded with empty (missing) fields.
func New(columns []string, records [][]string) (*Frame, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		index[c] = i
	}
	rows := make([][]string, len(records))
	for i, rec := range records {
		if len(rec) > len(columns) {
			return nil, fmt.Errorf("record %d has %d fields, header has %d", i+1, len(rec), len(columns))
		}
		if len(rec) < len(columns) {
			padded := make([]string, len(columns))
			copy(padded, rec)
			rec = padded
		}
		rows[i] = rec
	}
	return &Frame{columns: slices.Clone(columns), index: index, rows: rows}, nil
}

// ReadCSV reads a frame from r. The first record is the header.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty csv: missing header")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	// Some exports start with a UTF-8 byte order mark.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return New(header, records)
}

// LoadCSV reads a frame from a file on disk.
func LoadCSV(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	frame, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return frame, nil
}

// Columns returns the schema in file order.
func (f *Frame) Columns() []string { return slices.Clone(f.columns) }

// Has reports whether the column exists.
func (f *Frame) Has(col string) bool {
	_, ok := f.index[col]
	return ok
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.rows) }

// Row returns a view of the i-th row.
func (f *Frame) Row(i int) Row { return Row{frame: f, fields: f.rows[i]} }

// Rows returns views of every row in order.
func (f *Frame) Rows() []Row {
	out := make([]Row, len(f.rows))
	for i := range f.rows {
		out[i] = f.Row(i)
	}
	return out
}

// String returns the raw field at (row, col), empty when the column is unknown.
func (f *Frame) String(row int, col string) string {
	return f.Row(row).String(col)
}

// Float parses the field at (row, col). Missing or unparsable fields report false.
func (f *Frame) Float(row int, col string) (float64, bool) {
	return f.Row(row).Float(col)
}

// Column returns the raw values of a column.
func (f *Frame) Column(col string) ([]string, error) {
	i, ok := f.index[col]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
	}
	out := make([]string, len(f.rows))
	for r, rec := range f.rows {
		out[r] = rec[i]
	}
	return out, nil
}

// Floats returns a column parsed as numbers, with NaN for missing fields.
func (f *Frame) Floats(col string) ([]float64, error) {
	if !f.Has(col) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
	}
	out := make([]float64, len(f.rows))
	for r := range f.rows {
		v, ok := f.Float(r, col)
		if !ok {
			v = math.NaN()
		}
		out[r] = v
	}
	return out, nil
}

// Filter keeps the rows for which keep returns true.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	rows := make([][]string, 0, len(f.rows))
	for _, rec := range f.rows {
		if keep(Row{frame: f, fields: rec}) {
			rows = append(rows, rec)
		}
	}
	return f.derive(rows)
}

// DropMissing keeps the rows where every listed column parses as a number.
func (f *Frame) DropMissing(cols ...string) *Frame {
	return f.Filter(func(r Row) bool {
		for _, c := range cols {
			if _, ok := r.Float(c); !ok {
				return false
			}
		}
		return true
	})
}

// Select projects the frame onto the given columns, in that order.
func (f *Frame) Select(cols ...string) (*Frame, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		j, ok := f.index[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, c)
		}
		idx[i] = j
	}
	rows := make([][]string, len(f.rows))
	for r, rec := range f.rows {
		out := make([]string, len(idx))
		for i, j := range idx {
			out[i] = rec[j]
		}
		rows[r] = out
	}
	return New(cols, rows)
}

// SortBy orders rows by a numeric column. The sort is stable and missing
// values always go last regardless of direction.
func (f *Frame) SortBy(col string, ascending bool) (*Frame, error) {
	i, ok := f.index[col]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
	}
	rows := slices.Clone(f.rows)
	slices.SortStableFunc(rows, func(a, b []string) int {
		x, xok := parseFloat(a[i])
		y, yok := parseFloat(b[i])
		switch {
		case !xok && !yok:
			return 0
		case !xok:
			return 1
		case !yok:
			return -1
		}
		if !ascending {
			x, y = y, x
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	})
	return f.derive(rows), nil
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n < 0 {
		n = 0
	}
	if n > len(f.rows) {
		n = len(f.rows)
	}
	return f.derive(f.rows[:n:n])
}

// Unique returns the distinct values of a column in order of first appearance.
// Empty fields are skipped.
func (f *Frame) Unique(col string) []string {
	i, ok := f.index[col]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range f.rows {
		v := rec[i]
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (f *Frame) derive(rows [][]string) *Frame {
	return &Frame{columns: f.columns, index: f.index, rows: rows}
}

// Row is a read-only view of one record.
type Row struct {
	frame  *Frame
	fields []string
}

// String returns the raw field, empty when the column is unknown.
func (r Row) String(col string) string {
	i, ok := r.frame.index[col]
	if !ok {
		return ""
	}
	return r.fields[i]
}

// Float parses the field as a number.
func (r Row) Float(col string) (float64, bool) {
	return parseFloat(r.String(col))
}

// Bool parses the field as a boolean ("True", "false", "1", ...).
func (r Row) Bool(col string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(r.String(col)))
	return err == nil && b
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
