package panels

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/mldash/pkg/config"
	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/go-go-golems/mldash/pkg/tui/styles"
)

// Status reports render mode, backlog and timing. It declares CapStatus, so
// the dispatcher feeds it status snapshots instead of training messages.
type Status struct {
	title string

	seen          bool
	autoRendering bool
	mode          string
	loop          time.Duration
	modules       []time.Duration
	names         []string
	gridW, gridH  int
	updates       int

	theme styles.Theme
}

func statusDescriptor() Descriptor {
	return Descriptor{
		Name:         "StatusModule",
		Description:  "render mode and timing",
		Capabilities: []Capability{CapStatus},
		Schema: config.Schema{
			{Key: "title", Type: config.TypeString, Default: "Status"},
		},
		New: func(s Surface, opts config.Options) (Panel, error) {
			return &Status{title: opts.String("title"), theme: styles.DefaultTheme()}, nil
		},
	}
}

func (p *Status) Title() string { return p.title }

func (p *Status) Update(msg protocol.Message) ([]protocol.Message, error) {
	if msg.Kind != protocol.KindCustomData || !msg.Has(protocol.KeyCurrentMode) {
		return nil, nil
	}
	mode, err := msg.Text(protocol.KeyCurrentMode)
	if err != nil {
		return nil, err
	}
	auto, err := msg.Bool(protocol.KeyAutoRendering)
	if err != nil {
		return nil, err
	}
	loop, err := msg.Float(protocol.KeyTimer)
	if err != nil {
		return nil, err
	}
	timers, err := msg.Floats(protocol.KeyModulesTimer)
	if err != nil {
		return nil, err
	}
	w, err := msg.Int(protocol.KeyWidth)
	if err != nil {
		return nil, err
	}
	h, err := msg.Int(protocol.KeyHeight)
	if err != nil {
		return nil, err
	}

	p.seen = true
	p.mode = mode
	p.autoRendering = auto
	p.loop = seconds(loop)
	p.modules = p.modules[:0]
	for _, t := range timers {
		p.modules = append(p.modules, seconds(t))
	}
	p.names = nil
	if names, ok := msg.Payload[protocol.KeyModuleNames].([]string); ok {
		p.names = names
	}
	p.gridW, p.gridH = w, h
	p.updates++
	return nil, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (p *Status) View(width, height int) string {
	if !p.seen {
		return p.theme.TitleMuted.Render("(starting)")
	}
	theme := p.theme
	live := p.mode == protocol.ModeLive

	modeStyle := theme.StatusRunning
	if !live {
		modeStyle = theme.TitleMuted
	}
	render := "keeping up"
	renderStyle := theme.StatusRunning
	if !p.autoRendering {
		render = "behind"
		renderStyle = theme.StatusDead
	}

	lines := []string{
		modeStyle.Render(styles.ModeIcon(live)+" ") + theme.Title.Render(p.mode),
		fmt.Sprintf("Rendering: %s", renderStyle.Render(render)),
		fmt.Sprintf("Grid: %dx%d  Updates: %d", p.gridW, p.gridH, p.updates),
		fmt.Sprintf("Loop: %s", formatDuration(p.loop)),
	}
	for i, d := range p.modules {
		name := fmt.Sprintf("module %d", i)
		if i < len(p.names) {
			name = p.names[i]
		}
		lines = append(lines, theme.TitleMuted.Render(fmt.Sprintf("  %-24s %s", name, formatDuration(d))))
	}
	return strings.Join(lines, "\n")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	sec := d.Seconds()
	if sec < 10 {
		return fmt.Sprintf("%.1fs", sec)
	}
	return fmt.Sprintf("%.0fs", sec)
}
