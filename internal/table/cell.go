package table

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// UnknownMarker is the literal the CBR server sends for an attribute value it does not know.
// Decoders turn it into a missing cell; it never appears inside a Table.
const UnknownMarker = "_unknown_"

// Cell is one table value. A Cell with Valid == false is missing.
type Cell struct {
	Value any
	Valid bool
}

// Missing is the missing cell.
var Missing = Cell{}

// V wraps v as a present cell. A nil v or the unknown marker yields Missing.
func V(v any) Cell {
	if v == nil {
		return Missing
	}
	if s, ok := v.(string); ok && s == UnknownMarker {
		return Missing
	}
	return Cell{Value: v, Valid: true}
}

// Float returns the cell as a float64 when it holds a numeric value.
func (c Cell) Float() (float64, bool) {
	if !c.Valid {
		return 0, false
	}
	switch v := c.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// String renders the cell for display. Missing cells render as "".
func (c Cell) String() string {
	if !c.Valid {
		return ""
	}
	switch v := c.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any, map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}

// MarshalJSON encodes a missing cell as null and a present cell as its value.
func (c Cell) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// UnmarshalJSON decodes null as missing. Numbers decode as float64.
func (c *Cell) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*c = Missing
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = V(v)
	return nil
}

func roundCell(c Cell, digits int) (Cell, bool) {
	if !c.Valid {
		return c, true
	}
	switch c.Value.(type) {
	case int, int32, int64:
		return c, true
	}
	f, ok := c.Float()
	if !ok {
		return c, false
	}
	return Cell{Value: roundFloat(f, digits), Valid: true}, true
}

// roundFloat rounds through the decimal representation so that rounding a rounded value is a no-op.
func roundFloat(f float64, digits int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', digits, 64), 64)
	if err != nil {
		return f
	}
	return r
}

func numericFromString(c Cell) (Cell, bool) {
	if !c.Valid {
		return c, true
	}
	if _, ok := c.Float(); ok {
		return c, true
	}
	s, ok := c.Value.(string)
	if !ok {
		return c, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return c, false
	}
	return Cell{Value: f, Valid: true}, true
}
