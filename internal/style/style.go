// Package style provides terminal styling for formulacalc output using
// Lipgloss.
package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorNumber = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
	colorText   = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorBool   = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorError  = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
)

var (
	// Number style for numeric and date results
	Number = lipgloss.NewStyle().Foreground(colorNumber)

	// Text style for string results
	Text = lipgloss.NewStyle().Foreground(colorText)

	// Boolean style for TRUE/FALSE
	Boolean = lipgloss.NewStyle().Foreground(colorBool)

	// Error style for "Error: ..." results and failures
	Error = lipgloss.NewStyle().Foreground(colorError).Bold(true)

	// Dim style for addresses and secondary information
	Dim = lipgloss.NewStyle().Foreground(colorMuted)

	// Bold style for headers
	Bold = lipgloss.NewStyle().Bold(true)
)

// Kind picks how a rendered value is styled
type Kind int

const (
	KindEmpty Kind = iota
	KindNumber
	KindText
	KindBoolean
	KindError
)

// Render styles text according to kind
func Render(kind Kind, text string) string {
	switch kind {
	case KindNumber:
		return Number.Render(text)
	case KindText:
		return Text.Render(text)
	case KindBoolean:
		return Boolean.Render(text)
	case KindError:
		return Error.Render(text)
	default:
		return Dim.Render(text)
	}
}

// Table renders rows under a header with columns padded to their widest
// cell. widths are measured with lipgloss so styled cells line up.
type Table struct {
	header []string
	rows   [][]string
	align  []lipgloss.Position
}

func NewTable(header ...string) *Table {
	align := make([]lipgloss.Position, len(header))
	for i := range align {
		align[i] = lipgloss.Left
	}
	return &Table{header: header, align: align}
}

// AlignRight right-aligns column i
func (t *Table) AlignRight(i int) *Table {
	if i >= 0 && i < len(t.align) {
		t.align[i] = lipgloss.Right
	}
	return t
}

// AddRow appends a row, padding missing cells
func (t *Table) AddRow(cells ...string) *Table {
	for len(cells) < len(t.header) {
		cells = append(cells, "")
	}
	t.rows = append(t.rows, cells[:len(t.header)])
	return t
}

func (t *Table) Render() string {
	if len(t.header) == 0 {
		return ""
	}

	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	line := func(cells []string, style *lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if style != nil {
				cell = style.Render(cell)
			}
			parts[i] = lipgloss.PlaceHorizontal(widths[i], t.align[i], cell)
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	var sb strings.Builder
	sb.WriteString(line(t.header, &Bold))
	sb.WriteString("\n")
	total := 0
	for _, w := range widths {
		total += w
	}
	total += 2 * (len(widths) - 1)
	sb.WriteString(Dim.Render(strings.Repeat("─", total)))
	sb.WriteString("\n")
	for _, row := range t.rows {
		sb.WriteString(line(row, nil))
		sb.WriteString("\n")
	}
	return sb.String()
}
