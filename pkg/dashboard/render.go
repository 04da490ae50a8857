package dashboard

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/mldash/pkg/panels"
	"github.com/go-go-golems/mldash/pkg/tui/widgets"
)

// Render draws the panel grid into width x height cells. Each panel gets an
// equal share; the last row and column take the remainder.
func (d *Dashboard) Render(width, height int) string {
	if width <= 0 || height <= 0 || d.rows == 0 || d.cols == 0 {
		return ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	cellW := width / d.cols
	cellH := height / d.rows
	rows := make([]string, 0, d.rows)
	for r := 0; r < d.rows; r++ {
		h := cellH
		if r == d.rows-1 {
			h = height - cellH*(d.rows-1)
		}
		parts := make([]string, 0, d.cols)
		for c := 0; c < d.cols; c++ {
			w := cellW
			if c == d.cols-1 {
				w = width - cellW*(d.cols-1)
			}
			parts = append(parts, d.renderCellLocked(r*d.cols+c, w, h))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, parts...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (d *Dashboard) renderCellLocked(i, w, h int) string {
	inst := d.instances[i]
	innerW, innerH := widgets.InnerSize(w, h)

	content := d.viewPanel(inst, innerW, innerH)
	box := widgets.NewBox(inst.Panel.Title()).
		WithContent(content).
		WithSize(w, h).
		WithFocus(i == d.focus)
	if d.timers[i] > 0 {
		box = box.WithTitleRight(fmt.Sprintf("%dms", d.timers[i].Milliseconds()))
	}
	return box.Render()
}

func (d *Dashboard) viewPanel(inst panels.Instance, w, h int) (out string) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("panel", inst.Descriptor.Name).Interface("panic", r).Msg("panel view panicked")
			out = "(render error)"
		}
	}()
	return inst.Panel.View(w, h)
}

// HandleKey routes a key press to the focused interactive panel and pushes
// the resulting requests to the return queue. Tab cycles focus. It reports
// whether the key was consumed. It runs on the UI goroutine and must not
// notify: the bus blocks until the UI has taken the event.
func (d *Dashboard) HandleKey(msg tea.KeyMsg) bool {
	d.mu.Lock()
	if d.focus < 0 {
		d.mu.Unlock()
		return false
	}
	kh := d.instances[d.focus].Panel.(panels.KeyHandler)
	if !kh.Capturing() && msg.String() == "tab" {
		d.focus = d.nextFocusLocked()
		d.mu.Unlock()
		return true
	}
	capturing := kh.Capturing()
	reqs := kh.HandleKey(msg)
	consumed := capturing || kh.Capturing() || len(reqs) > 0
	d.mu.Unlock()

	d.forward(reqs)
	return consumed
}

func (d *Dashboard) nextFocusLocked() int {
	n := len(d.instances)
	for step := 1; step <= n; step++ {
		i := (d.focus + step) % n
		if _, ok := d.instances[i].Panel.(panels.KeyHandler); ok {
			return i
		}
	}
	return d.focus
}

// Capturing reports whether the focused panel wants every key, e.g. while a
// text prompt is open.
func (d *Dashboard) Capturing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.focus < 0 {
		return false
	}
	return d.instances[d.focus].Panel.(panels.KeyHandler).Capturing()
}

func (d *Dashboard) Keybinds() []widgets.Keybind {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.focus < 0 {
		return nil
	}
	binds := d.instances[d.focus].Panel.(panels.KeyHandler).Keybinds()
	if d.nextFocusLocked() != d.focus {
		binds = append(binds, widgets.Keybind{Key: "tab", Help: "next panel"})
	}
	return binds
}
