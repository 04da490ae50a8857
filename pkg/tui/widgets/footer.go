package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/mldash/pkg/tui/styles"
)

// Footer renders a styled keybindings bar with an optional status on the left.
type Footer struct {
	Keybinds []Keybind
	Status   string
	Width    int
	theme    styles.Theme
}

// NewFooter creates a new footer.
func NewFooter(keybinds []Keybind) Footer {
	return Footer{
		Keybinds: keybinds,
		theme:    styles.DefaultTheme(),
	}
}

// WithWidth sets the footer width.
func (f Footer) WithWidth(w int) Footer {
	f.Width = w
	return f
}

func (f Footer) WithStatus(s string) Footer {
	f.Status = s
	return f
}

// Render returns the styled footer as a string.
func (f Footer) Render() string {
	theme := f.theme

	width := f.Width
	if width < 0 {
		width = 0
	}
	separator := lipgloss.NewStyle().
		Foreground(theme.Muted).
		Render(strings.Repeat("━", width))

	keybindsLine := RenderKeybinds(f.Keybinds, theme)
	status := ""
	if f.Status != "" {
		status = theme.Title.Render(f.Status) + "  "
	}

	// Center the keybinds in what the status leaves over
	padding := (width - lipgloss.Width(keybindsLine)) / 2
	padding -= lipgloss.Width(status)
	if padding < 1 {
		padding = 1
	}
	line := status + lipgloss.NewStyle().PaddingLeft(padding).Render(keybindsLine)

	return lipgloss.JoinVertical(lipgloss.Left, separator, line)
}
