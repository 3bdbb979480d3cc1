package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Table renders rows under header. Markdown mode emits a markdown table,
// every other mode a box-drawn table.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	t.AppendHeader(headerRow)

	for _, cells := range rows {
		row := make(table.Row, len(cells))
		for i, c := range cells {
			row[i] = c
		}
		t.AppendRow(row)
	}

	if r.EffectiveMode() == ModeMarkdown {
		_, _ = fmt.Fprintln(r.out, t.RenderMarkdown())
		return
	}
	_, _ = fmt.Fprintln(r.out, t.Render())
}
