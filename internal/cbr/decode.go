package cbr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"mycbr/internal/table"
)

// Replies are parsed with gjson instead of encoding/json maps because the
// server's key order is meaningful: attribute order defines the column order,
// and retrieval replies list cases in server rank order.

func parse(operation string, body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s: decode response: %w: invalid JSON", operation, ErrMalformedResponse)
	}
	return gjson.ParseBytes(body), nil
}

func shapeError(operation, want string, got gjson.Result) error {
	return fmt.Errorf("%s: %w: want %s, got %s", operation, ErrMalformedResponse, want, kind(got))
}

func kind(r gjson.Result) string {
	switch {
	case r.IsObject():
		return "object"
	case r.IsArray():
		return "array"
	default:
		return strings.ToLower(r.Type.String())
	}
}

func cellOf(r gjson.Result) table.Cell {
	switch r.Type {
	case gjson.Null:
		return table.Missing
	case gjson.False:
		return table.V(false)
	case gjson.True:
		return table.V(true)
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			if n, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
				return table.V(n)
			}
		}
		return table.V(r.Num)
	case gjson.String:
		return table.V(r.Str)
	default:
		return table.V(r.Value())
	}
}

// decodeStrings decodes a JSON array of strings.
func decodeStrings(operation string, body []byte) ([]string, error) {
	res, err := parse(operation, body)
	if err != nil {
		return nil, err
	}
	if !res.IsArray() {
		return nil, shapeError(operation, "array", res)
	}
	out := []string{}
	for _, v := range res.Array() {
		if v.Type != gjson.String {
			return nil, shapeError(operation, "string element", v)
		}
		out = append(out, v.Str)
	}
	return out, nil
}

// forEachEntry walks a JSON object in document order.
func forEachEntry(operation string, res gjson.Result, fn func(key string, value gjson.Result) error) error {
	if !res.IsObject() {
		return shapeError(operation, "object", res)
	}
	var err error
	res.ForEach(func(k, v gjson.Result) bool {
		err = fn(k.String(), v)
		return err == nil
	})
	return err
}

// tabulateRecords builds an unlabelled table from a list of row objects.
// With columns == nil the columns are the keys in first-seen order; otherwise
// the table is constrained to columns and absent keys become missing cells.
func tabulateRecords(operation string, body []byte, columns []string) (*table.Table, error) {
	res, err := parse(operation, body)
	if err != nil {
		return nil, err
	}
	if !res.IsArray() {
		return nil, shapeError(operation, "array of objects", res)
	}

	records := res.Array()
	rows := make([]map[string]gjson.Result, len(records))
	var seen []string
	known := map[string]bool{}
	for i, rec := range records {
		row := map[string]gjson.Result{}
		if err := forEachEntry(operation, rec, func(key string, value gjson.Result) error {
			row[key] = value
			if !known[key] {
				known[key] = true
				seen = append(seen, key)
			}
			return nil
		}); err != nil {
			return nil, err
		}
		rows[i] = row
	}

	if columns == nil {
		columns = seen
	}
	t := table.New(columns...)
	for _, row := range rows {
		cells := make([]table.Cell, len(columns))
		for j, name := range columns {
			if v, ok := row[name]; ok {
				cells[j] = cellOf(v)
			}
		}
		if err := t.Append(cells...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// tabulateObject builds a one-row unlabelled table from a single object.
func tabulateObject(operation string, body []byte) (*table.Table, error) {
	res, err := parse(operation, body)
	if err != nil {
		return nil, err
	}
	var columns []string
	var cells []table.Cell
	if err := forEachEntry(operation, res, func(key string, value gjson.Result) error {
		columns = append(columns, key)
		cells = append(cells, cellOf(value))
		return nil
	}); err != nil {
		return nil, err
	}
	t := table.New(columns...)
	if err := t.Append(cells...); err != nil {
		return nil, err
	}
	return t, nil
}

// tabulateKeyValue turns {key: value, ...} into a single-column table indexed by key.
func tabulateKeyValue(operation string, body []byte, indexName, column string) (*table.Table, error) {
	res, err := parse(operation, body)
	if err != nil {
		return nil, err
	}
	t := table.NewIndexed(indexName, column)
	err = forEachEntry(operation, res, func(key string, value gjson.Result) error {
		return t.AppendLabeled(key, cellOf(value))
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// tabulateMatrix turns {outer: {inner: value}} into a table with one column
// per outer key and one row per inner key (first-seen order). Pairs absent
// from the reply are missing.
func tabulateMatrix(operation string, body []byte, indexName string) (*table.Table, error) {
	res, err := parse(operation, body)
	if err != nil {
		return nil, err
	}

	var columns, labels []string
	cells := map[string]map[string]table.Cell{}
	err = forEachEntry(operation, res, func(outer string, inner gjson.Result) error {
		columns = append(columns, outer)
		if inner.Type == gjson.Null {
			return nil
		}
		return forEachEntry(operation, inner, func(label string, value gjson.Result) error {
			row, ok := cells[label]
			if !ok {
				row = map[string]table.Cell{}
				cells[label] = row
				labels = append(labels, label)
			}
			row[outer] = cellOf(value)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	t := table.NewIndexed(indexName, columns...)
	for _, label := range labels {
		row := make([]table.Cell, len(columns))
		for j, col := range columns {
			row[j] = cells[label][col]
		}
		if err := t.AppendLabeled(label, row...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// tabulateKeyList turns {key: [v1, v2, ...]} into a table indexed by key with
// columns prefix1..prefixN. Shorter lists are padded with missing cells.
func tabulateKeyList(operation string, body []byte, indexName, prefix string) (*table.Table, error) {
	res, err := parse(operation, body)
	if err != nil {
		return nil, err
	}

	var keys []string
	var lists [][]gjson.Result
	width := 0
	err = forEachEntry(operation, res, func(key string, value gjson.Result) error {
		if !value.IsArray() {
			return shapeError(operation, "array value for "+strconv.Quote(key), value)
		}
		items := value.Array()
		keys = append(keys, key)
		lists = append(lists, items)
		width = max(width, len(items))
		return nil
	})
	if err != nil {
		return nil, err
	}

	columns := make([]string, width)
	for j := range columns {
		columns[j] = prefix + strconv.Itoa(j+1)
	}
	t := table.NewIndexed(indexName, columns...)
	for i, key := range keys {
		row := make([]table.Cell, width)
		for j, item := range lists[i] {
			row[j] = cellOf(item)
		}
		if err := t.AppendLabeled(key, row...); err != nil {
			return nil, err
		}
	}
	return t, nil
}
