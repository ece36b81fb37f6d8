package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"mycbr/internal/table"
)

// palette runs from low (dark purple) to high (yellow) similarity.
var palette = []lipgloss.Color{"53", "54", "55", "61", "25", "31", "30", "36", "35", "71", "77", "113", "149", "185", "226"}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	tickStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

const maxLabelWidth = 16

// HeatmapOptions controls Heatmap rendering.
type HeatmapOptions struct {
	Title string
	// TickInterval labels every nth row and column. Values below 1 label all.
	TickInterval int
	// Annotate prints each value inside its cell.
	Annotate bool
}

// Heatmap renders an indexed numeric table as a coloured grid, one row per
// table row and one cell per column. Missing cells are drawn dimmed.
func Heatmap(t *table.Table, opts HeatmapOptions) (string, error) {
	if !t.Indexed() {
		return "", fmt.Errorf("heatmap requires row labels")
	}
	every := max(opts.TickInterval, 1)
	lo, hi, ok := valueRange(t)
	if !ok {
		return "", fmt.Errorf("heatmap: table has no numeric cells")
	}

	width := 2
	if opts.Annotate {
		width = max(len(fmtValue(lo)), len(fmtValue(hi)))
	}

	labels := t.Labels()
	labelWidth := 0
	for i, l := range labels {
		if i%every == 0 {
			labelWidth = max(labelWidth, len([]rune(Truncate(l, maxLabelWidth))))
		}
	}

	var b strings.Builder
	if opts.Title != "" {
		b.WriteString(titleStyle.Render(opts.Title))
		b.WriteByte('\n')
	}

	columns := t.Columns()
	b.WriteString(strings.Repeat(" ", labelWidth+1))
	for j := range columns {
		mark := strings.Repeat(" ", width)
		if j%every == 0 {
			mark = "▼" + strings.Repeat(" ", width-1)
		}
		b.WriteString(tickStyle.Render(mark))
	}
	b.WriteByte('\n')

	for i, label := range labels {
		shown := ""
		if i%every == 0 {
			shown = Truncate(label, maxLabelWidth)
		}
		b.WriteString(tickStyle.Render(pad(shown, labelWidth)))
		b.WriteByte(' ')
		for _, c := range t.Row(i) {
			b.WriteString(renderCell(c, lo, hi, width, opts.Annotate))
		}
		b.WriteByte('\n')
	}

	var ticks []string
	for j, name := range columns {
		if j%every == 0 {
			ticks = append(ticks, strconv.Itoa(j+1)+" "+name)
		}
	}
	b.WriteString(dimStyle.Render("columns: " + strings.Join(ticks, ", ")))
	b.WriteByte('\n')

	b.WriteString(fmtValue(lo) + " ")
	for _, col := range palette {
		b.WriteString(lipgloss.NewStyle().Background(col).Render(" "))
	}
	b.WriteString(" " + fmtValue(hi) + "\n")
	return b.String(), nil
}

func renderCell(c table.Cell, lo, hi float64, width int, annotate bool) string {
	f, ok := c.Float()
	if !ok {
		return dimStyle.Render(strings.Repeat("·", width))
	}
	content := strings.Repeat(" ", width)
	if annotate {
		content = pad(fmtValue(f), width)
	}
	return lipgloss.NewStyle().
		Background(palette[shade(f, lo, hi)]).
		Foreground(lipgloss.Color("231")).
		Render(content)
}

// shade maps v in [lo, hi] to a palette index.
func shade(v, lo, hi float64) int {
	if hi <= lo {
		return len(palette) - 1
	}
	i := int(math.Round((v - lo) / (hi - lo) * float64(len(palette)-1)))
	return min(max(i, 0), len(palette)-1)
}

func valueRange(t *table.Table) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := 0; i < t.Len(); i++ {
		for _, c := range t.Row(i) {
			if f, valid := c.Float(); valid {
				lo, hi, ok = min(lo, f), max(hi, f), true
			}
		}
	}
	return lo, hi, ok
}

func fmtValue(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

func pad(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
