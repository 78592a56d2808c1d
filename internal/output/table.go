package output

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/rodaine/table"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

// RenderTable writes rows as an aligned table. styled adds header
// decoration for color-capable terminals. Nothing is written for no rows.
func RenderTable(w io.Writer, columns []Column, rows []map[string]string, styled bool) {
	if len(rows) == 0 {
		return
	}

	headers := make([]any, len(columns))
	for i, col := range columns {
		headers[i] = col.Name
	}
	tbl := table.New(headers...).WithWriter(w)
	if styled {
		tbl.WithHeaderFormatter(func(format string, vals ...any) string {
			return headerStyle.Render(fmt.Sprintf(format, vals...))
		})
	}

	for _, row := range rows {
		cells := make([]any, len(columns))
		for i, col := range columns {
			cells[i] = TruncateString(row[col.Key], col.Width)
		}
		tbl.AddRow(cells...)
	}
	tbl.Print()
}

// TruncateString shortens s to at most maxLen runes, ending in "..." when
// there is room for it. maxLen <= 0 means no limit.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
