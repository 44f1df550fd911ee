// Package render turns derived rasters into PNG figures.
package render

import (
	"fmt"
	"image/color"
	"math"

	"github.com/rkm/sentinel-pipeline/internal/raster"
)

// NoData is the colour of NaN samples.
var NoData = color.RGBA{0, 0, 0, 0}

// Colormap maps [0, 1] onto evenly spaced colour stops.
type Colormap struct {
	Name  string
	stops []color.RGBA
}

var colormaps = map[string]Colormap{
	raster.ColormapGray: {
		Name:  raster.ColormapGray,
		stops: []color.RGBA{{0, 0, 0, 255}, {255, 255, 255, 255}},
	},
	// ColorBrewer RdYlGn, 11 classes.
	raster.ColormapRdYlGn: {
		Name: raster.ColormapRdYlGn,
		stops: []color.RGBA{
			{165, 0, 38, 255}, {215, 48, 39, 255}, {244, 109, 67, 255}, {253, 174, 97, 255},
			{254, 224, 139, 255}, {255, 255, 191, 255}, {217, 239, 139, 255}, {166, 217, 106, 255},
			{102, 189, 99, 255}, {26, 152, 80, 255}, {0, 104, 55, 255},
		},
	},
	// matplotlib viridis sampled at nine points.
	raster.ColormapViridis: {
		Name: raster.ColormapViridis,
		stops: []color.RGBA{
			{68, 1, 84, 255}, {71, 44, 122, 255}, {59, 81, 139, 255}, {44, 113, 142, 255},
			{33, 144, 141, 255}, {39, 173, 129, 255}, {92, 200, 99, 255}, {170, 220, 50, 255},
			{253, 231, 37, 255},
		},
	},
}

// Lookup returns the named colormap. An empty name selects gray.
func Lookup(name string) (Colormap, error) {
	if name == "" {
		name = raster.ColormapGray
	}
	cm, ok := colormaps[name]
	if !ok {
		return Colormap{}, fmt.Errorf("unknown colormap %q", name)
	}
	return cm, nil
}

// At returns the colour for t, clamped to [0, 1]. NaN maps to NoData.
func (c Colormap) At(t float64) color.RGBA {
	if math.IsNaN(t) {
		return NoData
	}
	t = math.Max(0, math.Min(1, t))

	pos := t * float64(len(c.stops)-1)
	i := int(pos)
	if i >= len(c.stops)-1 {
		return c.stops[len(c.stops)-1]
	}
	f := pos - float64(i)
	a, b := c.stops[i], c.stops[i+1]
	return color.RGBA{
		R: lerp(a.R, b.R, f),
		G: lerp(a.G, b.G, f),
		B: lerp(a.B, b.B, f),
		A: 255,
	}
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*f))
}

// Normalize maps v from [lo, hi] to [0, 1] without clamping.
func Normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 0.5
	}
	return (v - lo) / (hi - lo)
}
