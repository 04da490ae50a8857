package train

import (
	"math/rand"

	"github.com/go-go-golems/mldash/pkg/callbacks"
)

const (
	GlyphSize    = 8
	GlyphClasses = 10
)

// digit templates, '#' is ink
var glyphTemplates = [GlyphClasses][GlyphSize]string{
	{"..####..", ".#....#.", ".#...##.", ".#..#.#.", ".#.#..#.", ".##...#.", ".#....#.", "..####.."},
	{"...##...", "..###...", ".#.##...", "...##...", "...##...", "...##...", "...##...", ".######."},
	{"..####..", ".#....#.", "......#.", ".....#..", "....#...", "...#....", "..#.....", ".######."},
	{"..####..", ".#....#.", "......#.", "...###..", "......#.", "......#.", ".#....#.", "..####.."},
	{"....##..", "...#.#..", "..#..#..", ".#...#..", ".######.", ".....#..", ".....#..", ".....#.."},
	{".######.", ".#......", ".#......", ".#####..", "......#.", "......#.", ".#....#.", "..####.."},
	{"..####..", ".#......", ".#......", ".#####..", ".#....#.", ".#....#.", ".#....#.", "..####.."},
	{".######.", "......#.", ".....#..", "....#...", "...#....", "...#....", "...#....", "...#...."},
	{"..####..", ".#....#.", ".#....#.", "..####..", ".#....#.", ".#....#.", ".#....#.", "..####.."},
	{"..####..", ".#....#.", ".#....#.", "..#####.", "......#.", "......#.", "......#.", "..####.."},
}

// GlyphOptions controls the synthetic data set.
type GlyphOptions struct {
	Samples int
	// Noise is the probability of flipping a pixel.
	Noise float64
	// Shift moves glyphs by up to this many pixels in each direction.
	Shift int
	Seed  int64
}

// Glyphs renders noisy, shifted 8x8 digit glyphs with uniformly drawn labels.
// The same seed yields the same data.
func Glyphs(opts GlyphOptions) callbacks.Dataset {
	rng := rand.New(rand.NewSource(opts.Seed))
	d := callbacks.Dataset{
		X: make([][]float64, 0, opts.Samples),
		Y: make([]int, 0, opts.Samples),
	}
	for i := 0; i < opts.Samples; i++ {
		label := rng.Intn(GlyphClasses)
		dx, dy := 0, 0
		if opts.Shift > 0 {
			dx = rng.Intn(2*opts.Shift+1) - opts.Shift
			dy = rng.Intn(2*opts.Shift+1) - opts.Shift
		}
		d.X = append(d.X, renderGlyph(label, dx, dy, opts.Noise, rng))
		d.Y = append(d.Y, label)
	}
	return d
}

func renderGlyph(label, dx, dy int, noise float64, rng *rand.Rand) []float64 {
	px := make([]float64, GlyphSize*GlyphSize)
	tpl := glyphTemplates[label]
	for y := 0; y < GlyphSize; y++ {
		for x := 0; x < GlyphSize; x++ {
			sx, sy := x-dx, y-dy
			v := 0.0
			if sx >= 0 && sx < GlyphSize && sy >= 0 && sy < GlyphSize && tpl[sy][sx] == '#' {
				v = 1
			}
			if noise > 0 && rng.Float64() < noise {
				v = 1 - v
			}
			px[y*GlyphSize+x] = v
		}
	}
	return px
}
