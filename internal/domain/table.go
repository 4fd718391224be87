package domain

import "strings"

// MissingStratum is the stratum value used for empty or missing descriptor cells.
const MissingStratum = "nan"

// Table is a loaded delimited table: a header and rows of raw string cells.
// Tables are treated as immutable once loaded; derived tables are built with Clone.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// NewTable creates a table and indexes its header.
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{Columns: columns, Rows: rows}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, exists := t.index[c]; !exists {
			t.index[c] = i
		}
	}
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column in the header.
func (t *Table) ColumnIndex(name string) (int, bool) {
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[name]
	return i, ok
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.ColumnIndex(name)
	return ok
}

// Cell returns the cell at (row, column), or "" for short rows.
func (t *Table) Cell(row, col int) string {
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	columns := make([]string, len(t.Columns))
	copy(columns, t.Columns)

	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rowCopy := make([]string, len(r))
		copy(rowCopy, r)
		rows[i] = rowCopy
	}
	return NewTable(columns, rows)
}

// NormalizeStratum maps a raw descriptor cell to its stratum value.
// Empty and NA-like cells collapse into MissingStratum.
func NormalizeStratum(raw string) string {
	v := strings.TrimSpace(raw)
	switch v {
	case "", "NA", "NaN", "nan", "<NA>", "None":
		return MissingStratum
	}
	return raw
}
