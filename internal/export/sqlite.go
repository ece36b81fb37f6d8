package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mycbr/internal/table"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const catalogTable = "mycbr_exports"

const catalogSchema = `
	CREATE TABLE IF NOT EXISTS mycbr_exports (
		name        TEXT PRIMARY KEY,
		index_name  TEXT,
		columns     TEXT NOT NULL,
		row_count   INTEGER NOT NULL,
		exported_at TEXT NOT NULL
	)`

// WriteSQLite stores t as table name in the SQLite database at path,
// replacing a previous export of the same name. Numeric columns are REAL,
// the rest TEXT; missing cells are NULL. Every export is recorded in the
// mycbr_exports catalog table.
func WriteSQLite(ctx context.Context, path, name string, t *table.Table) error {
	if name == "" || name == catalogTable {
		return fmt.Errorf("export sqlite: invalid table name %q", name)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return fmt.Errorf("export sqlite: open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("export sqlite: pragma: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("export sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := writeTable(ctx, tx, name, t); err != nil {
		return fmt.Errorf("export sqlite: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("export sqlite: commit: %w", err)
	}
	return nil
}

func writeTable(ctx context.Context, tx *sql.Tx, name string, t *table.Table) error {
	cols := header(t)
	defs := make([]string, len(cols))
	for j, col := range cols {
		typ := "TEXT"
		if !t.Indexed() || j > 0 {
			if numeric(t, col) {
				typ = "REAL"
			}
		}
		defs[j] = quote(col) + " " + typ
	}

	stmts := []string{
		"DROP TABLE IF EXISTS " + quote(name),
		"CREATE TABLE " + quote(name) + " (" + strings.Join(defs, ", ") + ")",
		catalogSchema,
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	quoted := make([]string, len(cols))
	for j, col := range cols {
		quoted[j] = quote(col)
	}
	insert, err := tx.PrepareContext(ctx, "INSERT INTO "+quote(name)+
		" ("+strings.Join(quoted, ", ")+") VALUES ("+placeholders+")")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	labels := t.Labels()
	for i := 0; i < t.Len(); i++ {
		args := make([]any, 0, len(cols))
		if t.Indexed() {
			args = append(args, labels[i])
		}
		for _, c := range t.Row(i) {
			args = append(args, sqlValue(c))
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	columns, err := json.Marshal(t.Columns())
	if err != nil {
		return err
	}
	var indexName any
	if t.Indexed() {
		indexName = t.IndexName()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO mycbr_exports (name, index_name, columns, row_count, exported_at) VALUES (?, ?, ?, ?, ?)`,
		name, indexName, string(columns), t.Len(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}

func sqlValue(c table.Cell) any {
	if !c.Valid {
		return nil
	}
	if f, ok := c.Float(); ok {
		return f
	}
	switch v := c.Value.(type) {
	case string:
		return v
	case bool:
		return v
	default:
		return c.String()
	}
}

func numeric(t *table.Table, column string) bool {
	cells, ok := t.Column(column)
	if !ok {
		return false
	}
	for _, c := range cells {
		if !c.Valid {
			continue
		}
		if _, ok := c.Float(); !ok {
			return false
		}
	}
	return true
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
