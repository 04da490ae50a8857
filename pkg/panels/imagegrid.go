package panels

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/mldash/pkg/tui/styles"
	"github.com/muesli/reflow/truncate"
)

// gridCell tracks what one image slot shows and the last rendering of it.
type gridCell struct {
	pixels []float64
	text   string
	color  string

	rev       int
	cachedRev int
	cachedW   int
	cachedH   int
	rendered  string
}

// ImageGrid lays out rows*cols greyscale images with a coloured caption under
// each. Cells are re-rendered only when their content or size changes and the
// grid is re-joined only when a cell changed.
type ImageGrid struct {
	imgW, imgH int
	rows, cols int
	cells      []gridCell

	dirty   bool
	layoutW int
	layoutH int
	layout  string
}

func NewImageGrid(imgW, imgH, rows, cols int) *ImageGrid {
	return &ImageGrid{
		imgW:  imgW,
		imgH:  imgH,
		rows:  rows,
		cols:  cols,
		cells: make([]gridCell, rows*cols),
		dirty: true,
	}
}

func (g *ImageGrid) Capacity() int { return g.rows * g.cols }

// Set replaces the grid content. Missing entries clear the remaining cells.
// Texts and colors may be shorter than images.
func (g *ImageGrid) Set(images [][]float64, texts, colors []string) {
	for i := range g.cells {
		var px []float64
		text, color := "", ""
		if i < len(images) {
			px = images[i]
			if i < len(texts) {
				text = texts[i]
			}
			if i < len(colors) {
				color = colors[i]
			}
		}
		g.setCell(i, px, text, color)
	}
}

func (g *ImageGrid) setCell(i int, px []float64, text, color string) {
	c := &g.cells[i]
	if c.text == text && c.color == color && samePixels(c.pixels, px) {
		return
	}
	c.pixels = append([]float64(nil), px...)
	c.text = text
	c.color = color
	c.rev++
	g.dirty = true
}

// Filled reports how many cells hold an image.
func (g *ImageGrid) Filled() int {
	n := 0
	for _, c := range g.cells {
		if len(c.pixels) > 0 {
			n++
		}
	}
	return n
}

func (g *ImageGrid) Texts() []string {
	out := make([]string, len(g.cells))
	for i, c := range g.cells {
		out[i] = c.text
	}
	return out
}

func (g *ImageGrid) Render(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	if !g.dirty && g.layoutW == width && g.layoutH == height {
		return g.layout
	}

	cellW := width / g.cols
	cellH := height / g.rows
	rows := make([]string, 0, g.rows)
	for r := 0; r < g.rows; r++ {
		parts := make([]string, 0, g.cols)
		for c := 0; c < g.cols; c++ {
			parts = append(parts, g.renderCell(r*g.cols+c, cellW, cellH))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, parts...))
	}
	g.layout = lipgloss.JoinVertical(lipgloss.Left, rows...)
	g.layoutW, g.layoutH = width, height
	g.dirty = false
	return g.layout
}

func (g *ImageGrid) renderCell(i, w, h int) string {
	c := &g.cells[i]
	if c.cachedRev == c.rev && c.cachedW == w && c.cachedH == h && c.rendered != "" {
		return c.rendered
	}

	block := lipgloss.NewStyle().Width(w).Height(h)
	if w <= 0 || h <= 0 {
		c.rendered = ""
		return ""
	}

	var lines []string
	if len(c.pixels) == 0 {
		lines = append(lines, styles.DefaultTheme().TitleMuted.Render("…"))
	} else {
		lines = append(lines, renderPixels(c.pixels, g.imgW, g.imgH, w-1, h-1)...)
		caption := truncate.StringWithTail(c.text, uint(maxInt(w-1, 1)), "…")
		style := lipgloss.NewStyle()
		if c.color != "" {
			style = style.Foreground(styles.NamedColor(c.color))
		}
		lines = append(lines, style.Render(caption))
	}

	c.rendered = block.Render(strings.Join(lines, "\n"))
	c.cachedRev, c.cachedW, c.cachedH = c.rev, w, h
	return c.rendered
}

// renderPixels draws a row-major greyscale image with half-block characters,
// two pixel rows per text line, downscaled to fit maxW x maxH cells.
func renderPixels(px []float64, imgW, imgH, maxW, maxH int) []string {
	if imgW <= 0 || imgH <= 0 || maxW <= 0 || maxH <= 0 {
		return nil
	}
	scale := 1
	for (imgW+scale-1)/scale > maxW || (imgH+scale-1)/scale > maxH*2 {
		scale++
	}
	outW := (imgW + scale - 1) / scale
	outH := (imgH + scale - 1) / scale

	peak := 0.0
	for _, v := range px {
		if v > peak {
			peak = v
		}
	}
	if peak <= 1 {
		peak = 1
	}
	at := func(x, y int) float64 {
		sx, sy := x*scale, y*scale
		idx := sy*imgW + sx
		if sy >= imgH || idx >= len(px) || idx < 0 {
			return 0
		}
		return px[idx] / peak
	}

	lines := make([]string, 0, (outH+1)/2)
	for y := 0; y < outH; y += 2 {
		var b strings.Builder
		for x := 0; x < outW; x++ {
			top := grey(at(x, y))
			bottom := grey(0)
			if y+1 < outH {
				bottom = grey(at(x, y+1))
			}
			b.WriteString(lipgloss.NewStyle().Foreground(top).Background(bottom).Render("▀"))
		}
		lines = append(lines, b.String())
	}
	return lines
}

func grey(v float64) lipgloss.Color {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	n := int(math.Round(v * 255))
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", n, n, n))
}

func samePixels(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
