package format

import (
	"mycbr/internal/table"
)

// MaxCellWidth wraps text cells wider than this in rendered tables.
const MaxCellWidth = 40

// RenderTable renders a result table. Indexed tables get a leading label
// column headed by the index name; numeric columns are right-aligned.
func RenderTable(t *table.Table, m Mode) string {
	tb := NewTable(m)

	offset := 0
	var header []string
	if t.Indexed() {
		header = append(header, t.IndexName())
		offset = 1
	}
	columns := t.Columns()
	header = append(header, columns...)
	tb.Header(header...)

	labels := t.Labels()
	for i := 0; i < t.Len(); i++ {
		row := make([]any, 0, len(header))
		if t.Indexed() {
			row = append(row, labels[i])
		}
		for _, c := range t.Row(i) {
			row = append(row, FmtCell(c))
		}
		tb.Row(row...)
	}

	cfgs := make([]ColumnConfig, 0, len(columns))
	for j, name := range columns {
		cfg := ColumnConfig{Number: j + 1 + offset, MaxWidth: MaxCellWidth}
		if numericColumn(t, name) {
			cfg.Align = AlignRight
		}
		cfgs = append(cfgs, cfg)
	}
	tb.Columns(cfgs...)

	return tb.String()
}

// numericColumn reports whether every present cell of the column is a number.
func numericColumn(t *table.Table, name string) bool {
	cells, _ := t.Column(name)
	seen := false
	for _, c := range cells {
		if !c.Valid {
			continue
		}
		if _, ok := c.Float(); !ok {
			return false
		}
		seen = true
	}
	return seen
}
