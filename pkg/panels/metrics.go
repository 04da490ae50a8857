package panels

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-go-golems/mldash/pkg/config"
	"github.com/go-go-golems/mldash/pkg/protocol"
	"github.com/go-go-golems/mldash/pkg/tui/styles"
)

// metricHistory accumulates per-epoch metric values. Epochs missing a metric
// hold NaN so every series stays aligned with the epoch axis.
type metricHistory struct {
	epochs []int
	values map[string][]float64
	order  []string
}

func newMetricHistory() *metricHistory {
	return &metricHistory{values: map[string][]float64{}}
}

func (h *metricHistory) add(msg protocol.Message) error {
	epoch, err := msg.Int(protocol.KeyEpoch)
	if err != nil {
		return err
	}
	metrics := msg.Metrics()
	names := make([]string, 0, len(metrics))
	for k := range metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := h.values[name]; !ok {
			h.values[name] = nanSlice(len(h.epochs))
			h.order = append(h.order, name)
		}
	}
	h.epochs = append(h.epochs, epoch)
	for _, name := range h.order {
		v, ok := metrics[name]
		if !ok {
			v = math.NaN()
		}
		h.values[name] = append(h.values[name], v)
	}
	return nil
}

func (h *metricHistory) series(names []string) []series {
	if len(names) == 0 {
		names = h.order
	}
	out := make([]series, 0, len(names))
	for _, n := range names {
		out = append(out, series{name: n, values: h.values[n]})
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// LossMetricsGraph plots per-epoch training metrics.
type LossMetricsGraph struct {
	title   string
	metrics []string
	history *metricHistory
	theme   styles.Theme
}

func lossMetricsGraphDescriptor() Descriptor {
	return Descriptor{
		Name:        "LossMetricsGraph",
		Description: "line chart of per-epoch metrics",
		Schema: config.Schema{
			{Key: "metrics", Type: config.TypeStringList, Default: []string{"loss", "accuracy"}, Help: "metrics to plot"},
			{Key: "title", Type: config.TypeString, Default: "Loss and Metrics"},
		},
		New: func(s Surface, opts config.Options) (Panel, error) {
			return &LossMetricsGraph{
				title:   opts.String("title"),
				metrics: opts.Strings("metrics"),
				history: newMetricHistory(),
				theme:   styles.DefaultTheme(),
			}, nil
		},
	}
}

func (p *LossMetricsGraph) Title() string { return p.title }

func (p *LossMetricsGraph) Update(msg protocol.Message) ([]protocol.Message, error) {
	if msg.Kind != protocol.KindEpochEnd {
		return nil, nil
	}
	return nil, p.history.add(msg)
}

func (p *LossMetricsGraph) View(width, height int) string {
	return renderChart(p.history.series(p.metrics), width, height, p.theme)
}

type metricSummary struct {
	latest    float64
	best      float64
	bestEpoch int
}

// LossMetricsNumerical lists the latest and best value of every metric and
// the final evaluation results.
type LossMetricsNumerical struct {
	title      string
	metrics    []string
	epoch      int
	seen       bool
	order      []string
	summary    map[string]*metricSummary
	evaluation map[string]float64
	theme      styles.Theme
}

func lossMetricsNumericalDescriptor() Descriptor {
	return Descriptor{
		Name:        "LossMetricsNumerical",
		Description: "latest and best metric values",
		Schema: config.Schema{
			{Key: "metrics", Type: config.TypeStringList, Help: "metrics to list (default: all)"},
			{Key: "title", Type: config.TypeString, Default: "Metrics"},
		},
		New: func(s Surface, opts config.Options) (Panel, error) {
			return &LossMetricsNumerical{
				title:   opts.String("title"),
				metrics: opts.Strings("metrics"),
				summary: map[string]*metricSummary{},
				theme:   styles.DefaultTheme(),
			}, nil
		},
	}
}

func (p *LossMetricsNumerical) Title() string { return p.title }

// lowerIsBetter treats loss- and error-like metrics as minimised.
func lowerIsBetter(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "loss") || strings.Contains(n, "error") || strings.HasPrefix(n, "mse") || strings.HasPrefix(n, "mae")
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (p *LossMetricsNumerical) Update(msg protocol.Message) ([]protocol.Message, error) {
	switch msg.Kind {
	case protocol.KindEpochEnd:
		epoch, err := msg.Int(protocol.KeyEpoch)
		if err != nil {
			return nil, err
		}
		p.epoch, p.seen = epoch, true
		metrics := msg.Metrics()
		names := make([]string, 0, len(metrics))
		for k := range metrics {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, name := range names {
			v := metrics[name]
			s, ok := p.summary[name]
			if !ok {
				p.summary[name] = &metricSummary{latest: v, best: v, bestEpoch: epoch}
				p.order = append(p.order, name)
				continue
			}
			s.latest = v
			if isFinite(v) && (!isFinite(s.best) || (lowerIsBetter(name) && v < s.best) || (!lowerIsBetter(name) && v > s.best)) {
				s.best, s.bestEpoch = v, epoch
			}
		}
	case protocol.KindEvaluation:
		p.evaluation = msg.Metrics()
	}
	return nil, nil
}

func (p *LossMetricsNumerical) View(width, height int) string {
	if !p.seen && p.evaluation == nil {
		return p.theme.TitleMuted.Render("(waiting for first epoch)")
	}
	names := p.metrics
	if len(names) == 0 {
		names = p.order
	}

	var lines []string
	if p.seen {
		lines = append(lines, p.theme.Title.Render(fmt.Sprintf("Epoch %d", p.epoch)))
	}
	for _, n := range names {
		s, ok := p.summary[n]
		if !ok {
			lines = append(lines, fmt.Sprintf("%-14s %s", n, p.theme.TitleMuted.Render("n/a")))
			continue
		}
		lines = append(lines, fmt.Sprintf("%-14s %10.4f  %s",
			n, s.latest, p.theme.TitleMuted.Render(fmt.Sprintf("best %.4f @%d", s.best, s.bestEpoch))))
	}
	if len(p.evaluation) > 0 {
		lines = append(lines, "", p.theme.Title.Render("Evaluation"))
		keys := make([]string, 0, len(p.evaluation))
		for k := range p.evaluation {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("%-14s %10.4f", k, p.evaluation[k]))
		}
	}
	return strings.Join(lines, "\n")
}
