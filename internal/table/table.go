// Package table turns heterogeneous raw tabular input into one rectangular shape.
package table

import (
	"strings"

	"github.com/wonny/polltrend/internal/contracts"
)

// Table is a rectangular table of raw string cells with named columns
type Table struct {
	Header []string
	Rows   [][]string
}

// Input is what a source ingester hands over: either a header row followed by
// data rows, or an already-rectangular table. Exactly one should be set.
type Input struct {
	Rows  [][]string
	Table *Table
}

// FromRows wraps header+data rows
func FromRows(rows [][]string) Input {
	return Input{Rows: rows}
}

// FromTable wraps an already-rectangular table
func FromTable(t *Table) Input {
	return Input{Table: t}
}

// Normalize converts raw input into a rectangular Table whose first row has been
// promoted to column names. Header cells are trimmed. Fails with FormatError on
// empty input, blank or duplicate column names, or inconsistent row widths.
// ⭐ SSOT: Raw Table Normalizer
func Normalize(in Input) (*Table, error) {
	var header []string
	var rows [][]string

	switch {
	case in.Table != nil:
		header, rows = in.Table.Header, in.Table.Rows
	case len(in.Rows) > 0:
		header, rows = in.Rows[0], in.Rows[1:]
	default:
		return nil, contracts.NewFormatError("empty input")
	}

	if len(header) == 0 {
		return nil, contracts.NewFormatError("missing header row")
	}
	if len(rows) == 0 {
		return nil, contracts.NewFormatError("table has a header but no data rows")
	}

	out := &Table{
		Header: make([]string, len(header)),
		Rows:   make([][]string, 0, len(rows)),
	}

	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			return nil, contracts.NewFormatError("column %d has an empty name", i)
		}
		if seen[name] {
			return nil, contracts.NewFormatError("duplicate column %q", name)
		}
		seen[name] = true
		out.Header[i] = name
	}

	for i, row := range rows {
		if len(row) != len(header) {
			return nil, contracts.NewFormatError("row %d has %d cells, header has %d", i, len(row), len(header))
		}
		out.Rows = append(out.Rows, append([]string(nil), row...))
	}

	return out, nil
}

// Width returns the number of columns
func (t *Table) Width() int {
	return len(t.Header)
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of the column whose name matches one of names
// case-insensitively, or -1
func (t *Table) Index(names ...string) int {
	for i, h := range t.Header {
		for _, n := range names {
			if strings.EqualFold(h, n) {
				return i
			}
		}
	}
	return -1
}

// Column returns the cells of column i
func (t *Table) Column(i int) []string {
	col := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		col[r] = row[i]
	}
	return col
}
