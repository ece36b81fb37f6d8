// Package export writes result tables to files: JSON, CSV or a table in a
// SQLite database.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mycbr/internal/table"
)

// ToFile writes t to path in the format implied by the extension: .json,
// .csv, or .db/.sqlite/.sqlite3. For SQLite, name is the table to (re)create.
func ToFile(ctx context.Context, path, name string, t *table.Table) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return writeFile(path, func(w io.Writer) error { return WriteJSON(w, t) })
	case ".csv":
		return writeFile(path, func(w io.Writer) error { return WriteCSV(w, t) })
	case ".db", ".sqlite", ".sqlite3":
		return WriteSQLite(ctx, path, name, t)
	default:
		return fmt.Errorf("export: unsupported file extension %q (want .json, .csv, .db)", filepath.Ext(path))
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes the table's JSON encoding, indented.
func WriteJSON(w io.Writer, t *table.Table) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	return nil
}

// WriteCSV writes a header line and one record per row. Indexed tables get a
// leading label column. Missing cells are empty fields.
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(t)); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	labels := t.Labels()
	for i := 0; i < t.Len(); i++ {
		var rec []string
		if t.Indexed() {
			rec = append(rec, labels[i])
		}
		for _, c := range t.Row(i) {
			rec = append(rec, c.String())
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	return nil
}

// header returns the column names, preceded by the index column for indexed tables.
func header(t *table.Table) []string {
	cols := t.Columns()
	if !t.Indexed() {
		return cols
	}
	return append([]string{indexColumn(t)}, cols...)
}

// indexColumn names the label column, avoiding clashes with data columns.
func indexColumn(t *table.Table) string {
	name := t.IndexName()
	if name == "" {
		name = "label"
	}
	for t.ColumnIndex(name) >= 0 {
		name = "_" + name
	}
	return name
}
