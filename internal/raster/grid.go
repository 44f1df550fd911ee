// Package raster provides the in-memory band model shared by the SAR and
// optical processors: a row-major float64 grid with its geospatial
// referencing. No-data samples are NaN.
package raster

import (
	"fmt"
	"math"
)

// GeoRef is the spatial referencing of a grid: a GDAL-style affine
// geotransform and the projection as WKT.
type GeoRef struct {
	Transform  [6]float64
	Projection string
}

// ForWindow returns the referencing of the window w of a raster referenced by g.
func (g GeoRef) ForWindow(w Window) GeoRef {
	t := g.Transform
	t[0] += float64(w.X)*t[1] + float64(w.Y)*t[2]
	t[3] += float64(w.X)*t[4] + float64(w.Y)*t[5]
	return GeoRef{Transform: t, Projection: g.Projection}
}

// Scaled returns g with the pixel size multiplied by sx and sy, keeping the origin.
func (g GeoRef) Scaled(sx, sy float64) GeoRef {
	t := g.Transform
	t[1] *= sx
	t[2] *= sy
	t[4] *= sx
	t[5] *= sy
	return GeoRef{Transform: t, Projection: g.Projection}
}

// PixelSize returns the absolute pixel width and height in georeferenced units.
func (g GeoRef) PixelSize() (float64, float64) {
	return math.Hypot(g.Transform[1], g.Transform[4]), math.Hypot(g.Transform[2], g.Transform[5])
}

// SameGeoRef reports whether a and b describe the same pixel grid.
func SameGeoRef(a, b GeoRef) bool {
	const tol = 1e-9
	for i := range a.Transform {
		if math.Abs(a.Transform[i]-b.Transform[i]) > tol*math.Max(1, math.Abs(a.Transform[i])) {
			return false
		}
	}
	return a.Projection == b.Projection
}

// Grid is a single raster band held in memory.
type Grid struct {
	Width  int
	Height int
	Data   []float64
	GeoRef GeoRef
}

// New allocates a zeroed grid.
func New(width, height int, ref GeoRef) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Data:   make([]float64, width*height),
		GeoRef: ref,
	}
}

// NewFilled allocates a grid with every sample set to v.
func NewFilled(width, height int, ref GeoRef, v float64) *Grid {
	g := New(width, height, ref)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

// FromRows builds a grid from row slices; every row must have the same length.
func FromRows(rows [][]float64, ref GeoRef) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("rows are empty")
	}
	g := New(len(rows[0]), len(rows), ref)
	for y, row := range rows {
		if len(row) != g.Width {
			return nil, fmt.Errorf("row %d has %d values, want %d", y, len(row), g.Width)
		}
		copy(g.Data[y*g.Width:], row)
	}
	return g, nil
}

// At returns the sample at column x, row y.
func (g *Grid) At(x, y int) float64 {
	return g.Data[y*g.Width+x]
}

// Set stores v at column x, row y.
func (g *Grid) Set(x, y int, v float64) {
	g.Data[y*g.Width+x] = v
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{Width: g.Width, Height: g.Height, GeoRef: g.GeoRef}
	out.Data = make([]float64, len(g.Data))
	copy(out.Data, g.Data)
	return out
}

// Map returns a new grid with fn applied to every sample.
func (g *Grid) Map(fn func(float64) float64) *Grid {
	out := New(g.Width, g.Height, g.GeoRef)
	for i, v := range g.Data {
		out.Data[i] = fn(v)
	}
	return out
}

// SameShape reports whether g and o have identical dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return g.Width == o.Width && g.Height == o.Height
}

// Region copies the window w out of g.
func (g *Grid) Region(w Window) (*Grid, error) {
	clipped, err := w.Clip(g.Width, g.Height)
	if err != nil {
		return nil, err
	}

	out := New(clipped.Width, clipped.Height, g.GeoRef.ForWindow(clipped))
	for y := 0; y < clipped.Height; y++ {
		src := (clipped.Y+y)*g.Width + clipped.X
		copy(out.Data[y*out.Width:(y+1)*out.Width], g.Data[src:src+clipped.Width])
	}
	return out, nil
}

// Downsample keeps every factor-th sample in both directions.
func (g *Grid) Downsample(factor int) *Grid {
	if factor <= 1 {
		return g.Clone()
	}

	w := (g.Width + factor - 1) / factor
	h := (g.Height + factor - 1) / factor
	out := New(w, h, g.GeoRef.Scaled(float64(factor), float64(factor)))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Data[y*w+x] = g.Data[(y*factor)*g.Width+x*factor]
		}
	}
	return out
}

// Upsample repeats every sample of g factor times in both directions and
// returns the width x height grid starting phaseX, phaseY fine pixels into
// the first coarse pixel. Output pixels past the edge of g repeat the last
// row or column.
func (g *Grid) Upsample(factor, phaseX, phaseY, width, height int) *Grid {
	factor = max(factor, 1)
	inv := 1 / float64(factor)
	out := New(width, height, g.GeoRef.Scaled(inv, inv).ForWindow(Window{X: phaseX, Y: phaseY}))

	for y := 0; y < height; y++ {
		srcY := min((phaseY+y)/factor, g.Height-1)
		for x := 0; x < width; x++ {
			srcX := min((phaseX+x)/factor, g.Width-1)
			out.Data[y*width+x] = g.Data[srcY*g.Width+srcX]
		}
	}
	return out
}

// Valid returns the non-NaN samples.
func (g *Grid) Valid() []float64 {
	out := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// CountNaN returns the number of no-data samples.
func (g *Grid) CountNaN() int {
	n := 0
	for _, v := range g.Data {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}
