package table

import (
	"encoding/json"
	"fmt"
)

type jsonRow struct {
	Label  *string `json:"label,omitempty"`
	Values []Cell  `json:"values"`
}

type jsonTable struct {
	IndexName string    `json:"index_name,omitempty"`
	Indexed   bool      `json:"indexed"`
	Columns   []string  `json:"columns"`
	Rows      []jsonRow `json:"rows"`
}

// MarshalJSON encodes the table as {"index_name", "indexed", "columns", "rows":[{"label","values"}]}.
// Missing cells encode as null.
func (t *Table) MarshalJSON() ([]byte, error) {
	jt := jsonTable{
		IndexName: t.indexName,
		Indexed:   t.indexed,
		Columns:   t.columns,
		Rows:      make([]jsonRow, len(t.rows)),
	}
	if jt.Columns == nil {
		jt.Columns = []string{}
	}
	for i, row := range t.rows {
		jr := jsonRow{Values: row}
		if t.indexed {
			label := t.labels[i]
			jr.Label = &label
		}
		jt.Rows[i] = jr
	}
	return json.Marshal(jt)
}

// UnmarshalJSON decodes the encoding produced by MarshalJSON.
func (t *Table) UnmarshalJSON(data []byte) error {
	var jt jsonTable
	if err := json.Unmarshal(data, &jt); err != nil {
		return err
	}
	out := New(jt.Columns...)
	if jt.Indexed {
		out = NewIndexed(jt.IndexName, jt.Columns...)
	}
	for i, jr := range jt.Rows {
		var err error
		if jt.Indexed {
			if jr.Label == nil {
				return fmt.Errorf("table: row %d has no label", i)
			}
			err = out.AppendLabeled(*jr.Label, jr.Values...)
		} else {
			err = out.Append(jr.Values...)
		}
		if err != nil {
			return err
		}
	}
	*t = *out
	return nil
}
