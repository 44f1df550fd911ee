package sar

import (
	"context"
	"fmt"
	"math"

	"github.com/rkm/sentinel-pipeline/internal/raster"
)

// Descriptor names a GLCM statistic.
type Descriptor string

const (
	Contrast      Descriptor = "contrast"
	Dissimilarity Descriptor = "dissimilarity"
	Homogeneity   Descriptor = "homogeneity"
	Energy        Descriptor = "energy"
	Correlation   Descriptor = "correlation"
)

// Descriptors lists every statistic produced by Texture, in output order.
var Descriptors = []Descriptor{Contrast, Dissimilarity, Homogeneity, Energy, Correlation}

// TextureOptions configures the co-occurrence analysis. Pairs are taken
// horizontally, Distance pixels apart, and counted in both directions.
type TextureOptions struct {
	Window   int
	Levels   int
	Distance int
}

func (o TextureOptions) validate() error {
	if o.Window < 1 || o.Window%2 == 0 {
		return fmt.Errorf("texture window must be a positive odd number, got %d", o.Window)
	}
	if o.Levels < 2 || o.Levels > 256 {
		return fmt.Errorf("texture levels must be in [2, 256], got %d", o.Levels)
	}
	if o.Distance < 1 {
		return fmt.Errorf("texture distance must be positive, got %d", o.Distance)
	}
	return nil
}

// Values holds one set of GLCM statistics.
type Values map[Descriptor]float64

// Quantize maps the valid samples of g linearly onto [0, levels-1] using
// their own min and max. NaN samples map to -1.
func Quantize(g *raster.Grid, levels int) []int {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range g.Data {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]int, len(g.Data))
	span := hi - lo
	for i, v := range g.Data {
		switch {
		case math.IsNaN(v):
			out[i] = -1
		case span <= 0:
			out[i] = 0
		default:
			out[i] = int((v-lo)/span*float64(levels-1) + 0.5)
		}
	}
	return out
}

// Texture computes every descriptor over a sliding Window x Window
// neighbourhood centred on each pixel of g. Pixels that are NaN in g, or
// whose neighbourhood holds no valid pair, are NaN in every output.
func Texture(ctx context.Context, g *raster.Grid, opts TextureOptions) (map[Descriptor]*raster.Grid, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	q := Quantize(g, opts.Levels)
	out := make(map[Descriptor]*raster.Grid, len(Descriptors))
	for _, d := range Descriptors {
		out[d] = raster.New(g.Width, g.Height, g.GeoRef)
	}

	half := opts.Window / 2
	m := newCooccurrence(opts.Levels)

	for y := 0; y < g.Height; y++ {
		if y%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		r0, r1 := max(y-half, 0), min(y+half, g.Height-1)
		m.reset()
		curLo, curHi := 0, -1

		for x := 0; x < g.Width; x++ {
			// columns whose right partner is still inside the window
			lo := max(x-half, 0)
			hi := min(x+half, g.Width-1) - opts.Distance

			for c := curLo; c < lo && c <= curHi; c++ {
				m.column(q, g.Width, c, opts.Distance, r0, r1, -1)
			}
			for c := max(curHi+1, lo); c <= hi; c++ {
				m.column(q, g.Width, c, opts.Distance, r0, r1, 1)
			}
			curLo, curHi = lo, hi

			i := y*g.Width + x
			if q[i] < 0 {
				for _, d := range Descriptors {
					out[d].Data[i] = math.NaN()
				}
				continue
			}
			v := m.values()
			for _, d := range Descriptors {
				out[d].Data[i] = v[d]
			}
		}
	}
	return out, nil
}

// PatchTexture computes the descriptors over the whole of g as one
// neighbourhood, after quantizing g on its own range.
func PatchTexture(g *raster.Grid, opts TextureOptions) (Values, error) {
	opts.Window = 1
	if err := opts.validate(); err != nil {
		return nil, err
	}

	q := Quantize(g, opts.Levels)
	m := newCooccurrence(opts.Levels)
	for c := 0; c+opts.Distance < g.Width; c++ {
		m.column(q, g.Width, c, opts.Distance, 0, g.Height-1, 1)
	}
	return m.values(), nil
}

// cooccurrence is a symmetric grey-level co-occurrence matrix with running
// sums so that pairs can be added and removed in O(1).
type cooccurrence struct {
	levels int
	counts []int64
	diffs  []int64 // entries by |i-j|

	n      int64 // total entries, two per pair
	sumSq  int64 // sum of counts squared
	sumI   int64 // sum of row index over entries
	sumII  int64
	sumIJ  int64
	weight []float64 // 1/(1+d^2)
}

func newCooccurrence(levels int) *cooccurrence {
	m := &cooccurrence{
		levels: levels,
		counts: make([]int64, levels*levels),
		diffs:  make([]int64, levels),
		weight: make([]float64, levels),
	}
	for d := range m.weight {
		m.weight[d] = 1 / (1 + float64(d*d))
	}
	return m
}

func (m *cooccurrence) reset() {
	clear(m.counts)
	clear(m.diffs)
	m.n, m.sumSq, m.sumI, m.sumII, m.sumIJ = 0, 0, 0, 0, 0
}

// column adds (sign 1) or removes (sign -1) the pairs starting in column c
// for rows r0 through r1.
func (m *cooccurrence) column(q []int, width, c, dist, r0, r1 int, sign int64) {
	for r := r0; r <= r1; r++ {
		a, b := q[r*width+c], q[r*width+c+dist]
		if a < 0 || b < 0 {
			continue
		}
		m.bump(a*m.levels+b, sign)
		m.bump(b*m.levels+a, sign)

		d := a - b
		if d < 0 {
			d = -d
		}
		ai, bi := int64(a), int64(b)
		m.diffs[d] += 2 * sign
		m.n += 2 * sign
		m.sumI += sign * (ai + bi)
		m.sumII += sign * (ai*ai + bi*bi)
		m.sumIJ += 2 * sign * ai * bi
	}
}

func (m *cooccurrence) bump(cell int, sign int64) {
	c := m.counts[cell]
	m.sumSq += 2*c*sign + 1
	m.counts[cell] = c + sign
}

func (m *cooccurrence) values() Values {
	if m.n == 0 {
		nan := math.NaN()
		return Values{Contrast: nan, Dissimilarity: nan, Homogeneity: nan, Energy: nan, Correlation: nan}
	}

	n := float64(m.n)
	var contrast, dissimilarity, homogeneity float64
	for d, c := range m.diffs {
		if c == 0 {
			continue
		}
		fc := float64(c)
		contrast += fc * float64(d*d)
		dissimilarity += fc * float64(d)
		homogeneity += fc * m.weight[d]
	}

	mu := float64(m.sumI) / n
	variance := float64(m.sumII)/n - mu*mu
	correlation := 1.0
	if variance > 1e-12 {
		correlation = (float64(m.sumIJ)/n - mu*mu) / variance
	}

	return Values{
		Contrast:      contrast / n,
		Dissimilarity: dissimilarity / n,
		Homogeneity:   homogeneity / n,
		Energy:        math.Sqrt(float64(m.sumSq)) / n,
		Correlation:   correlation,
	}
}
