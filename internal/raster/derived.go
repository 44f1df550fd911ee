package raster

import "fmt"

// Colormap names understood by the renderer.
const (
	ColormapGray    = "gray"
	ColormapRdYlGn  = "rdylgn"
	ColormapViridis = "viridis"
)

// Style carries the visualization hints of a derived raster.
type Style struct {
	Colormap string
	Min, Max float64
	Title    string
	Label    string
}

// Derived is the output of a transform. Its grid shares the referencing of
// the band it was computed from.
type Derived struct {
	Name        string
	Description string
	Grid        *Grid
	Style       Style

	// Source is the path of the band the raster was derived from.
	Source string
}

// CheckCoRegistered verifies that every derived raster has the referencing
// and dimensions of ref.
func CheckCoRegistered(ref *Grid, derived ...*Derived) error {
	for _, d := range derived {
		if d.Grid == nil {
			return fmt.Errorf("derived raster %q has no grid", d.Name)
		}
		if !d.Grid.SameShape(ref) {
			return fmt.Errorf("derived raster %q is %dx%d, source is %dx%d",
				d.Name, d.Grid.Width, d.Grid.Height, ref.Width, ref.Height)
		}
		if !SameGeoRef(d.Grid.GeoRef, ref.GeoRef) {
			return fmt.Errorf("derived raster %q is not co-registered with its source", d.Name)
		}
	}
	return nil
}
