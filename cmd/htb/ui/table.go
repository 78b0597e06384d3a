package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders static rows under a title with aligned columns.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// NewTable creates a new Table with the given title and headers.
func NewTable(title string, headers ...string) *Table {
	return &Table{Title: title, Headers: headers}
}

// AddRow adds a row. Missing cells render empty; extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.Headers))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// View renders the table, or an empty-state line when it has no rows.
func (t *Table) View(styles Styles, empty string) string {
	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title))
		sb.WriteString("\n")
	}
	if len(t.Rows) == 0 {
		sb.WriteString(styles.Muted.Render(empty))
		return sb.String()
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	headerStyle := styles.Bold.Padding(0, 1)
	rowStyle := styles.Body.Padding(0, 1)
	sep := styles.Muted.Render("│")

	cells := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		cells[i] = headerStyle.Width(widths[i] + 2).Render(h)
	}
	sb.WriteString(strings.Join(cells, sep) + "\n")

	total := len(t.Headers) - 1
	for _, w := range widths {
		total += w + 2
	}
	sb.WriteString(styles.RenderDivider(total) + "\n")

	for r, row := range t.Rows {
		for i, cell := range row {
			cells[i] = rowStyle.Width(widths[i] + 2).Render(cell)
		}
		sb.WriteString(strings.Join(cells, sep))
		if r < len(t.Rows)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
