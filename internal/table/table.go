// Package table holds the rectangular, labeled results returned by the CBR client.
//
// A Table has ordered named columns and rows of Cells. Tables built from keyed
// replies (case id → similarity, attribute id → weight) carry an index: a name
// plus one label per row. Tables built from lists of records are unlabelled.
//
// Operations that reshape a table (Round, SortBy, Select, Transpose, ...)
// return a new Table and leave the receiver untouched.
package table

import (
	"fmt"
	"slices"
)

// Table is a rectangular result with optional row labels.
type Table struct {
	indexName string
	indexed   bool
	columns   []string
	labels    []string
	rows      [][]Cell
}

// New returns an empty unlabelled table with the given columns.
func New(columns ...string) *Table {
	return &Table{columns: slices.Clone(columns)}
}

// NewIndexed returns an empty table whose rows are labeled; indexName names the label column.
func NewIndexed(indexName string, columns ...string) *Table {
	return &Table{indexName: indexName, indexed: true, columns: slices.Clone(columns)}
}

// Append adds a row to an unlabelled table.
func (t *Table) Append(cells ...Cell) error {
	if t.indexed {
		return fmt.Errorf("table: append unlabeled row to indexed table")
	}
	if len(cells) != len(t.columns) {
		return fmt.Errorf("table: row has %d cells, want %d", len(cells), len(t.columns))
	}
	t.rows = append(t.rows, slices.Clone(cells))
	return nil
}

// AppendLabeled adds a labeled row to an indexed table.
func (t *Table) AppendLabeled(label string, cells ...Cell) error {
	if !t.indexed {
		return fmt.Errorf("table: append labeled row %q to unlabeled table", label)
	}
	if len(cells) != len(t.columns) {
		return fmt.Errorf("table: row %q has %d cells, want %d", label, len(cells), len(t.columns))
	}
	t.labels = append(t.labels, label)
	t.rows = append(t.rows, slices.Clone(cells))
	return nil
}

// IndexName returns the name of the row-label column ("" when unnamed).
func (t *Table) IndexName() string { return t.indexName }

// SetIndexName renames the row-label column.
func (t *Table) SetIndexName(name string) { t.indexName = name }

// Indexed reports whether rows carry labels.
func (t *Table) Indexed() bool { return t.indexed }

// Columns returns a copy of the column names.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// Labels returns a copy of the row labels, or nil for an unlabelled table.
func (t *Table) Labels() []string { return slices.Clone(t.labels) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return len(t.rows) == 0 }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int { return slices.Index(t.columns, name) }

// Row returns a copy of row i.
func (t *Table) Row(i int) []Cell { return slices.Clone(t.rows[i]) }

// At returns the cell of row i in the named column.
func (t *Table) At(i int, column string) (Cell, bool) {
	j := t.ColumnIndex(column)
	if j < 0 || i < 0 || i >= len(t.rows) {
		return Missing, false
	}
	return t.rows[i][j], true
}

// Lookup returns the cell at the labeled row and named column.
func (t *Table) Lookup(label, column string) (Cell, bool) {
	i := slices.Index(t.labels, label)
	if i < 0 {
		return Missing, false
	}
	return t.At(i, column)
}

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]Cell, bool) {
	j := t.ColumnIndex(name)
	if j < 0 {
		return nil, false
	}
	out := make([]Cell, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out, true
}

// RenameColumns replaces all column names at once.
func (t *Table) RenameColumns(names ...string) error {
	if len(names) != len(t.columns) {
		return fmt.Errorf("table: rename %d columns with %d names", len(t.columns), len(names))
	}
	t.columns = slices.Clone(names)
	return nil
}

// Clone returns a deep copy of the table structure. Cell values are shared.
func (t *Table) Clone() *Table {
	c := &Table{
		indexName: t.indexName,
		indexed:   t.indexed,
		columns:   slices.Clone(t.columns),
		labels:    slices.Clone(t.labels),
		rows:      make([][]Cell, len(t.rows)),
	}
	for i, row := range t.rows {
		c.rows[i] = slices.Clone(row)
	}
	return c
}
