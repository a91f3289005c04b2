package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/entireio/shadow/cmd/shadow/cli/warnings"
)

var (
	insertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	deleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	headerStyle = lipgloss.NewStyle().Bold(true)
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
)

// palette applies terminal styles, or nothing when output is not a terminal.
type palette struct {
	enabled bool
}

// paletteFor enables styling when w is a terminal and NO_COLOR is unset.
func paletteFor(w io.Writer) palette {
	return palette{enabled: os.Getenv("NO_COLOR") == "" && warnings.IsTerminal(w)}
}

func (p palette) render(style lipgloss.Style, s string) string {
	if !p.enabled {
		return s
	}
	return style.Render(s)
}

func (p palette) added(s string) string   { return p.render(insertStyle, s) }
func (p palette) removed(s string) string { return p.render(deleteStyle, s) }
func (p palette) header(s string) string  { return p.render(headerStyle, s) }
func (p palette) note(s string) string    { return p.render(noteStyle, s) }
