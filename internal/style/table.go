package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Column defines a table column with name and width.
type Column struct {
	Name  string
	Width int
	Align Alignment
	Style lipgloss.Style
}

// Alignment specifies column text alignment.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// Table renders fixed-width columns for status and config listings.
// Cell widths are measured in terminal cells, so styled text and icons
// line up.
type Table struct {
	columns     []Column
	rows        [][]string
	headerSep   bool
	indent      string
	headerStyle lipgloss.Style
}

// NewTable creates a new table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{
		columns:     columns,
		headerSep:   true,
		indent:      "  ",
		headerStyle: Bold,
	}
}

// SetIndent sets the left indent for the table.
func (t *Table) SetIndent(indent string) *Table {
	t.indent = indent
	return t
}

// SetHeaderSeparator enables/disables the header separator line.
func (t *Table) SetHeaderSeparator(enabled bool) *Table {
	t.headerSep = enabled
	return t
}

// AddRow adds a row. Missing trailing cells render empty.
func (t *Table) AddRow(values ...string) *Table {
	t.rows = append(t.rows, values)
	return t
}

// Render returns the formatted table string.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var sb strings.Builder
	header := make([]string, len(t.columns))
	for i, col := range t.columns {
		header[i] = t.headerStyle.Render(col.Name)
	}
	t.writeRow(&sb, header)

	if t.headerSep {
		total := len(t.columns) - 1
		for _, col := range t.columns {
			total += col.Width
		}
		sb.WriteString(t.indent + Dim.Render(strings.Repeat("─", total)) + "\n")
	}

	for _, row := range t.rows {
		cells := make([]string, len(t.columns))
		for i, col := range t.columns {
			if i >= len(row) {
				continue
			}
			cell := row[i]
			if col.Width > 3 && ansi.StringWidth(cell) > col.Width {
				cell = ansi.Truncate(cell, col.Width, "...")
			}
			if col.Style.Value() != "" {
				cell = col.Style.Render(cell)
			}
			cells[i] = cell
		}
		t.writeRow(&sb, cells)
	}

	return sb.String()
}

func (t *Table) writeRow(sb *strings.Builder, cells []string) {
	sb.WriteString(t.indent)
	for i, col := range t.columns {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(pad(cells[i], col.Width, col.Align))
	}
	sb.WriteString("\n")
}

// pad fills s to width terminal cells. Wider text is returned unchanged.
func pad(s string, width int, align Alignment) string {
	padding := width - ansi.StringWidth(s)
	if padding <= 0 {
		return s
	}

	switch align {
	case AlignRight:
		return strings.Repeat(" ", padding) + s
	case AlignCenter:
		left := padding / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", padding-left)
	default:
		return s + strings.Repeat(" ", padding)
	}
}
