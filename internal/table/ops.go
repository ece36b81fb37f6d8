package table

import (
	"cmp"
	"fmt"
	"slices"
)

// Round returns a copy with numeric cells rounded to digits decimal places.
// Without column names every column is rounded. Non-numeric cells pass
// through unchanged; the second result counts them. A negative digits value
// disables rounding.
func (t *Table) Round(digits int, columns ...string) (*Table, int) {
	out := t.Clone()
	if digits < 0 {
		return out, 0
	}
	targets := t.columnPositions(columns)
	skipped := 0
	for _, row := range out.rows {
		for _, j := range targets {
			c, ok := roundCell(row[j], digits)
			if !ok {
				skipped++
			}
			row[j] = c
		}
	}
	return out, skipped
}

// ToNumeric converts every cell of column to a number, parsing numeric strings.
// If any present cell cannot be converted the column is left as it was and
// the second result is false.
func (t *Table) ToNumeric(column string) (*Table, bool) {
	out := t.Clone()
	j := t.ColumnIndex(column)
	if j < 0 {
		return out, false
	}
	converted := make([]Cell, len(out.rows))
	for i, row := range out.rows {
		c, ok := numericFromString(row[j])
		if !ok {
			return out, false
		}
		converted[i] = c
	}
	for i, row := range out.rows {
		row[j] = converted[i]
	}
	return out, true
}

// SortBy returns a copy with rows stably sorted on the numeric value of column.
// Missing and non-numeric cells sort last in either direction.
func (t *Table) SortBy(column string, descending bool) (*Table, error) {
	j := t.ColumnIndex(column)
	if j < 0 {
		return nil, fmt.Errorf("table: sort by unknown column %q", column)
	}
	order := make([]int, len(t.rows))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		fa, oka := t.rows[a][j].Float()
		fb, okb := t.rows[b][j].Float()
		switch {
		case !oka && !okb:
			return 0
		case !oka:
			return 1
		case !okb:
			return -1
		}
		if descending {
			return cmp.Compare(fb, fa)
		}
		return cmp.Compare(fa, fb)
	})
	return t.permuteRows(order), nil
}

// SortColumns returns a copy with columns in ascending label order.
func (t *Table) SortColumns() *Table {
	names := slices.Clone(t.columns)
	slices.Sort(names)
	return t.Select(names...)
}

// Select returns a copy restricted to the given columns in the given order.
// Columns the table does not have are filled with missing cells.
func (t *Table) Select(columns ...string) *Table {
	out := &Table{
		indexName: t.indexName,
		indexed:   t.indexed,
		columns:   slices.Clone(columns),
		labels:    slices.Clone(t.labels),
		rows:      make([][]Cell, len(t.rows)),
	}
	src := make([]int, len(columns))
	for k, name := range columns {
		src[k] = t.ColumnIndex(name)
	}
	for i, row := range t.rows {
		next := make([]Cell, len(columns))
		for k, j := range src {
			if j >= 0 {
				next[k] = row[j]
			}
		}
		out.rows[i] = next
	}
	return out
}

// Transpose swaps rows and columns of an indexed table. Row labels become
// column names and column names become row labels; the index is unnamed.
func (t *Table) Transpose() (*Table, error) {
	if !t.indexed {
		return nil, fmt.Errorf("table: transpose requires row labels")
	}
	out := NewIndexed("", t.labels...)
	for j, name := range t.columns {
		cells := make([]Cell, len(t.rows))
		for i, row := range t.rows {
			cells[i] = row[j]
		}
		if err := out.AppendLabeled(name, cells...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Reindex returns a copy whose rows follow the given label order.
// Every label must exist; labels not listed are dropped.
func (t *Table) Reindex(labels ...string) (*Table, error) {
	if !t.indexed {
		return nil, fmt.Errorf("table: reindex requires row labels")
	}
	order := make([]int, len(labels))
	for k, label := range labels {
		i := slices.Index(t.labels, label)
		if i < 0 {
			return nil, fmt.Errorf("table: unknown row label %q", label)
		}
		order[k] = i
	}
	return t.permuteRows(order), nil
}

// RowSums returns the sum of the numeric cells of every row.
func (t *Table) RowSums() []float64 {
	sums := make([]float64, len(t.rows))
	for i, row := range t.rows {
		for _, c := range row {
			if f, ok := c.Float(); ok {
				sums[i] += f
			}
		}
	}
	return sums
}

// OrderByRowSum reorders a square similarity table so that the row with the
// highest total comes first, applying the same order to rows and columns.
// Ties keep their original order. Row labels and column names must be the
// same set.
func (t *Table) OrderByRowSum() (*Table, error) {
	if !t.indexed {
		return nil, fmt.Errorf("table: order by row sum requires row labels")
	}
	if len(t.labels) != len(t.columns) {
		return nil, fmt.Errorf("table: not square: %d rows, %d columns", len(t.labels), len(t.columns))
	}
	seen := make(map[string]bool, len(t.labels))
	for _, label := range t.labels {
		if seen[label] {
			return nil, fmt.Errorf("table: duplicate row label %q", label)
		}
		if t.ColumnIndex(label) < 0 {
			return nil, fmt.Errorf("table: row %q has no matching column", label)
		}
		seen[label] = true
	}

	sums := t.RowSums()
	order := make([]int, len(sums))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(sums[b], sums[a]) })

	labels := make([]string, len(order))
	for k, i := range order {
		labels[k] = t.labels[i]
	}
	rows, err := t.Reindex(labels...)
	if err != nil {
		return nil, err
	}
	return rows.Select(labels...), nil
}

func (t *Table) permuteRows(order []int) *Table {
	out := &Table{
		indexName: t.indexName,
		indexed:   t.indexed,
		columns:   slices.Clone(t.columns),
		rows:      make([][]Cell, len(order)),
	}
	if t.indexed {
		out.labels = make([]string, len(order))
	}
	for k, i := range order {
		out.rows[k] = slices.Clone(t.rows[i])
		if t.indexed {
			out.labels[k] = t.labels[i]
		}
	}
	return out
}

func (t *Table) columnPositions(columns []string) []int {
	if len(columns) == 0 {
		all := make([]int, len(t.columns))
		for j := range all {
			all[j] = j
		}
		return all
	}
	var out []int
	for _, name := range columns {
		if j := t.ColumnIndex(name); j >= 0 {
			out = append(out, j)
		}
	}
	return out
}
