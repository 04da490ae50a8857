package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/mldash/pkg/tui/styles"
	"github.com/muesli/reflow/truncate"
)

// Box draws a rounded border with a title into a fixed outer size.
type Box struct {
	Title      string
	TitleRight string
	Content    string
	Width      int
	Height     int
	Focused    bool
	theme      styles.Theme
}

func NewBox(title string) Box {
	return Box{Title: title, theme: styles.DefaultTheme()}
}

func (b Box) WithTitleRight(s string) Box {
	b.TitleRight = s
	return b
}

func (b Box) WithContent(s string) Box {
	b.Content = s
	return b
}

// WithSize sets the outer size, borders included.
func (b Box) WithSize(width, height int) Box {
	b.Width, b.Height = width, height
	return b
}

func (b Box) WithFocus(f bool) Box {
	b.Focused = f
	return b
}

// InnerSize is the content area left inside the border and title line.
func InnerSize(width, height int) (int, int) {
	w := width - 2
	h := height - 3
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return w, h
}

func (b Box) Render() string {
	theme := b.theme
	innerW, innerH := InnerSize(b.Width, b.Height)

	title := theme.Title.Render(truncate.StringWithTail(b.Title, uint(maxInt(innerW-1, 0)), "…"))
	if b.TitleRight != "" {
		right := theme.TitleMuted.Render(b.TitleRight)
		gap := innerW - lipgloss.Width(title) - lipgloss.Width(right)
		if gap >= 1 {
			title = title + strings.Repeat(" ", gap) + right
		}
	}

	body := fitLines(b.Content, innerW, innerH)

	border := theme.Border
	if b.Focused {
		border = theme.Primary
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(innerW).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

// fitLines clips content to exactly h lines of at most w cells.
func fitLines(content string, w, h int) string {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(lines) > h {
		lines = lines[:h]
	}
	for i, l := range lines {
		if lipgloss.Width(l) > w {
			lines[i] = truncate.String(l, uint(w))
		}
	}
	for len(lines) < h {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
