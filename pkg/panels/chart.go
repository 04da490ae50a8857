package panels

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/mldash/pkg/tui/styles"
)

type series struct {
	name   string
	values []float64
}

const axisWidth = 8

// renderChart plots every series on a shared y axis. Points of consecutive
// epochs are joined by interpolating the rows between them. Values that are
// NaN are skipped.
func renderChart(all []series, width, height int, theme styles.Theme) string {
	plotW := width - axisWidth
	plotH := height - 2
	if plotW < 2 || plotH < 2 {
		return theme.TitleMuted.Render("(too small)")
	}

	n := 0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range all {
		if len(s.values) > n {
			n = len(s.values)
		}
		for _, v := range s.values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if n == 0 || math.IsInf(lo, 1) {
		return theme.TitleMuted.Render("(waiting for first epoch)")
	}
	if hi == lo {
		hi, lo = hi+0.5, lo-0.5
	}

	grid := make([][]int, plotH)
	for r := range grid {
		grid[r] = make([]int, plotW)
		for c := range grid[r] {
			grid[r][c] = -1
		}
	}
	col := func(i int) int {
		if n == 1 {
			return 0
		}
		return i * (plotW - 1) / (n - 1)
	}
	row := func(v float64) int {
		r := int(math.Round((hi - v) / (hi - lo) * float64(plotH-1)))
		if r < 0 {
			r = 0
		}
		if r >= plotH {
			r = plotH - 1
		}
		return r
	}

	for si, s := range all {
		prevC, prevR := -1, -1
		for i, v := range s.values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				prevC = -1
				continue
			}
			c, r := col(i), row(v)
			if prevC >= 0 && c > prevC {
				for x := prevC + 1; x < c; x++ {
					t := float64(x-prevC) / float64(c-prevC)
					y := int(math.Round(float64(prevR) + t*float64(r-prevR)))
					grid[y][x] = si
				}
			}
			grid[r][c] = si
			prevC, prevR = c, r
		}
	}

	var b strings.Builder
	for r := 0; r < plotH; r++ {
		label := ""
		switch r {
		case 0:
			label = formatAxis(hi)
		case plotH - 1:
			label = formatAxis(lo)
		case (plotH - 1) / 2:
			label = formatAxis((hi + lo) / 2)
		}
		b.WriteString(theme.TitleMuted.Render(fmt.Sprintf("%*s ┤", axisWidth-2, label)))
		for c := 0; c < plotW; c++ {
			si := grid[r][c]
			if si < 0 {
				b.WriteByte(' ')
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(theme.SeriesColor(si)).Render("•"))
		}
		b.WriteByte('\n')
	}

	axis := fmt.Sprintf("%*s └%s", axisWidth-2, "", strings.Repeat("─", maxInt(plotW-1, 0)))
	b.WriteString(theme.TitleMuted.Render(axis))
	b.WriteByte('\n')

	legend := make([]string, 0, len(all)+1)
	for si, s := range all {
		legend = append(legend, lipgloss.NewStyle().Foreground(theme.SeriesColor(si)).Render(styles.IconDot+" "+s.name))
	}
	legend = append(legend, theme.TitleMuted.Render(fmt.Sprintf("epochs 0..%d", n-1)))
	b.WriteString(strings.Join(legend, "  "))
	return b.String()
}

func formatAxis(v float64) string {
	a := math.Abs(v)
	switch {
	case a == 0:
		return "0"
	case a >= 1000 || a < 0.001:
		return fmt.Sprintf("%.1e", v)
	case a >= 10:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%.3f", v)
	}
}
