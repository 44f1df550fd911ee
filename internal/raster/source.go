package raster

import "context"

// Info describes a raster file without reading its pixels.
type Info struct {
	Width  int
	Height int
	Bands  int
	GeoRef GeoRef

	NoData    float64
	HasNoData bool
}

// Source reads windows of the first band of raster files. Paths may be
// GDAL virtual paths such as /vsizip/.
type Source interface {
	Info(ctx context.Context, path string) (Info, error)
	ReadWindow(ctx context.Context, path string, w Window) (*Grid, error)
}

// Panel asks for a side-by-side comparison of two derived rasters over a
// window of their common grid.
type Panel struct {
	Name   string
	Title  string
	Window Window
	Left   string
	Right  string
}

// Output is everything a processing stage hands back: the reference grid
// all rasters are co-registered with, the rasters themselves, and
// comparison panels to render.
type Output struct {
	Reference *Grid
	Rasters   []*Derived
	Panels    []Panel
}

// Lookup returns the derived raster called name, or nil.
func (o *Output) Lookup(name string) *Derived {
	for _, d := range o.Rasters {
		if d.Name == name {
			return d
		}
	}
	return nil
}
