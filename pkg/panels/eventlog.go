package panels

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/go-go-golems/mldash/pkg/config"
	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/go-go-golems/mldash/pkg/tui/styles"
	"github.com/muesli/reflow/wordwrap"
)

type logEntry struct {
	At    time.Time
	Level string
	Text  string
}

// EventLog keeps a bounded, scrolling log of lifecycle, evaluation and custom
// data messages.
type EventLog struct {
	title   string
	max     int
	epochs  bool
	entries []logEntry
	now     func() time.Time

	vp    viewport.Model
	theme styles.Theme
}

func eventLogDescriptor() Descriptor {
	return Descriptor{
		Name:        "EventLog",
		Description: "log of custom data, evaluation and lifecycle messages",
		Schema: config.Schema{
			{Key: "title", Type: config.TypeString, Default: "Events"},
			{Key: "max", Type: config.TypeInt, Default: 200, Help: "entries kept"},
			{Key: "epochs", Type: config.TypeBool, Default: true, Help: "log a line per epoch"},
		},
		New: func(s Surface, opts config.Options) (Panel, error) {
			return &EventLog{
				title:  opts.String("title"),
				max:    opts.Int("max"),
				epochs: opts.Bool("epochs"),
				now:    time.Now,
				vp:     viewport.New(0, 0),
				theme:  styles.DefaultTheme(),
			}, nil
		},
	}
}

func (p *EventLog) Title() string { return p.title }

func (p *EventLog) Update(msg protocol.Message) ([]protocol.Message, error) {
	switch msg.Kind {
	case protocol.KindEpochEnd:
		if !p.epochs {
			return nil, nil
		}
		epoch, err := msg.Int(protocol.KeyEpoch)
		if err != nil {
			return nil, err
		}
		metrics := msg.Metrics()
		p.append(metricsLevel(metrics), fmt.Sprintf("epoch %d %s", epoch, formatMetrics(metrics)))
	case protocol.KindEvaluation:
		metrics := msg.Metrics()
		p.append(metricsLevel(metrics), "evaluation "+formatMetrics(metrics))
	case protocol.KindCustomData:
		p.append("debug", "data "+formatPayload(msg.Payload))
	case protocol.KindEnd:
		p.append("info", "training finished")
	}
	return nil, nil
}

// metricsLevel flags epochs whose metrics diverged.
func metricsLevel(m map[string]float64) string {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "warn"
		}
	}
	return "info"
}

func (p *EventLog) append(level, text string) {
	p.entries = append(p.entries, logEntry{At: p.now(), Level: level, Text: text})
	if p.max > 0 && len(p.entries) > p.max {
		p.entries = append([]logEntry{}, p.entries[len(p.entries)-p.max:]...)
	}
}

func (p *EventLog) Len() int { return len(p.entries) }

func (p *EventLog) View(width, height int) string {
	if len(p.entries) == 0 {
		return p.theme.TitleMuted.Render("(no events yet)")
	}
	p.vp.Width = maxInt(0, width)
	p.vp.Height = maxInt(1, height)

	lines := make([]string, 0, len(p.entries))
	for _, e := range p.entries {
		line := fmt.Sprintf("%s %s %s", p.theme.TitleMuted.Render(e.At.Format("15:04:05")), styles.LogLevelIcon(e.Level), e.Text)
		lines = append(lines, wordwrap.String(line, maxInt(width, 1)))
	}
	p.vp.SetContent(strings.Join(lines, "\n"))
	p.vp.GotoBottom()
	return p.vp.View()
}

func formatMetrics(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.4f", k, m[k]))
	}
	return strings.Join(parts, " ")
}

func formatPayload(p map[string]any) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		s := fmt.Sprint(p[k])
		if len(s) > 40 {
			s = s[:37] + "..."
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, s))
	}
	return strings.Join(parts, " ")
}
