package schedule

import (
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"wstcal/internal/grid"
)

// WriteTable renders m as a terminal week grid: one row per slot boundary,
// one column per displayed day. A block shows its title and time on its first
// row and a continuation mark on the rows it spans.
func WriteTable(w io.Writer, m Model, g *grid.SlotGrid) {
	header := make([]string, 0, len(m.Days)+1)
	header = append(header, "")
	for _, col := range m.Days {
		header = append(header, col.Day.Abbrev())
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetRowLine(false)

	for r := 0; r < g.Len(); r++ {
		row := make([]string, 0, len(m.Days)+1)
		row = append(row, g.Label(r))
		for _, col := range m.Days {
			var cells []string
			for _, b := range col.Blocks {
				switch {
				case b.RowStart == r:
					cells = append(cells, b.DisplayTitle()+" "+b.TimeLabel)
				case b.RowStart < r && r < b.RowEnd():
					cells = append(cells, "|")
				}
			}
			row = append(row, strings.Join(cells, " / "))
		}
		table.Append(row)
	}
	table.Render()
}
