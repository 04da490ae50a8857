package models

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/go-go-golems/mldash/pkg/tui"
	"github.com/go-go-golems/mldash/pkg/tui/styles"
	"github.com/go-go-golems/mldash/pkg/tui/widgets"
)

// Renderer is the part of the dashboard the UI needs.
type Renderer interface {
	Title() string
	Mode() string
	Render(width, height int) string
	HandleKey(msg tea.KeyMsg) bool
	Capturing() bool
	Keybinds() []widgets.Keybind
}

type DashboardModel struct {
	r Renderer

	width  int
	height int

	mode       string
	dispatched int
	last       *tui.DispatchedMsg
	depth      tui.QueueDepth

	theme styles.Theme
}

func NewDashboardModel(r Renderer) DashboardModel {
	return DashboardModel{r: r, mode: r.Mode(), theme: styles.DefaultTheme()}
}

func (m DashboardModel) WithSize(width, height int) DashboardModel {
	m.width, m.height = width, height
	return m
}

func (m DashboardModel) Init() tea.Cmd { return nil }

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		w, h := v.Width, v.Height
		if w <= 0 {
			w = 80
		}
		if h <= 0 {
			h = 24
		}
		return m.WithSize(w, h), nil
	case tea.KeyMsg:
		if v.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if !m.r.Capturing() && v.String() == "q" {
			return m, tea.Quit
		}
		m.r.HandleKey(v)
		return m, nil
	case tui.ModeChangedMsg:
		m.mode = v.Mode
		return m, nil
	case tui.DispatchedMsg:
		m.dispatched++
		last := v
		m.last = &last
		return m, nil
	case tui.QueueDepthMsg:
		m.depth = v.Depth
		return m, nil
	case tui.RedrawMsg:
		return m, nil
	}
	return m, nil
}

func (m DashboardModel) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	header := m.header()
	footer := m.footer()
	bodyH := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyH < 3 {
		bodyH = 3
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, m.r.Render(m.width, bodyH), footer)
}

func (m DashboardModel) header() string {
	live := m.mode == protocol.ModeLive
	icon := m.theme.StatusRunning.Render(styles.ModeIcon(live))
	if !live {
		icon = m.theme.TitleMuted.Render(styles.ModeIcon(live))
	}
	left := fmt.Sprintf("%s %s  %s", icon, m.theme.Title.Render(m.r.Title()), m.theme.TitleMuted.Render(m.mode))

	right := fmt.Sprintf("messages %d", m.dispatched)
	if m.last != nil {
		right += fmt.Sprintf("  last %s %.1fms", m.last.Kind, m.last.ElapsedMs)
	}
	right = m.theme.TitleMuted.Render(right)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left
	}
	return left + lipgloss.NewStyle().Width(gap).Render("") + right
}

func (m DashboardModel) footer() string {
	binds := append([]widgets.Keybind{}, m.r.Keybinds()...)
	if !m.r.Capturing() {
		binds = append(binds, widgets.Keybind{Key: "q", Help: "quit"})
	}
	status := fmt.Sprintf("updates %d  returns %d", m.depth.Updates, m.depth.Returns)
	return widgets.NewFooter(binds).WithWidth(m.width).WithStatus(status).Render()
}
