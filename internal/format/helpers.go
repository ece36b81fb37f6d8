package format

import "mycbr/internal/table"

// Missing is how a missing cell is rendered.
const Missing = "NaN"

// FmtCell renders a cell for display.
func FmtCell(c table.Cell) string {
	if !c.Valid {
		return Missing
	}
	return c.String()
}

// Truncate shortens s to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// BoolMark returns "✓" for true and "✗" for false.
func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}
