package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Primary lipgloss.Color
	Muted   lipgloss.Color
	Border  lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Text    lipgloss.Color

	// Series colours for charts, cycled in order.
	Series []lipgloss.Color

	Title         lipgloss.Style
	TitleMuted    lipgloss.Style
	StatusRunning lipgloss.Style
	StatusDead    lipgloss.Style
	KeybindKey    lipgloss.Style
	KeybindDesc   lipgloss.Style
}

func DefaultTheme() Theme {
	t := Theme{
		Primary: lipgloss.Color("#89b4fa"),
		Muted:   lipgloss.Color("#6c7086"),
		Border:  lipgloss.Color("#45475a"),
		Success: lipgloss.Color("#a6e3a1"),
		Warning: lipgloss.Color("#f9e2af"),
		Error:   lipgloss.Color("#f38ba8"),
		Text:    lipgloss.Color("#cdd6f4"),
		Series: []lipgloss.Color{
			lipgloss.Color("#89b4fa"),
			lipgloss.Color("#fab387"),
			lipgloss.Color("#a6e3a1"),
			lipgloss.Color("#f5c2e7"),
			lipgloss.Color("#94e2d5"),
			lipgloss.Color("#f9e2af"),
		},
	}
	t.Title = lipgloss.NewStyle().Bold(true).Foreground(t.Text)
	t.TitleMuted = lipgloss.NewStyle().Foreground(t.Muted)
	t.StatusRunning = lipgloss.NewStyle().Foreground(t.Success)
	t.StatusDead = lipgloss.NewStyle().Foreground(t.Error)
	t.KeybindKey = lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	t.KeybindDesc = lipgloss.NewStyle().Foreground(t.Muted)
	return t
}

// SeriesColor cycles through the chart palette.
func (t Theme) SeriesColor(i int) lipgloss.Color {
	if len(t.Series) == 0 {
		return t.Primary
	}
	if i < 0 {
		i = -i
	}
	return t.Series[i%len(t.Series)]
}

var namedColors = map[string]string{
	"green":  "#a6e3a1",
	"red":    "#f38ba8",
	"blue":   "#89b4fa",
	"yellow": "#f9e2af",
	"orange": "#fab387",
	"white":  "#ffffff",
	"black":  "#000000",
	"gray":   "#9399b2",
	"grey":   "#9399b2",
}

// NamedColor resolves a config colour: a known name, a #hex value or an ANSI
// index.
func NamedColor(name string) lipgloss.Color {
	n := strings.ToLower(strings.TrimSpace(name))
	if hex, ok := namedColors[n]; ok {
		return lipgloss.Color(hex)
	}
	return lipgloss.Color(n)
}
