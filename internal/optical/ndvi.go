// Package optical implements the Sentinel-2 vegetation path: surface
// reflectance scaling, NDVI and scene-classification cloud masking.
package optical

import (
	"fmt"
	"math"

	"github.com/rkm/sentinel-pipeline/internal/raster"
)

// SCL classes of the Sentinel-2 L2A scene classification layer.
const (
	SCLNoData          = 0
	SCLSaturated       = 1
	SCLDarkArea        = 2
	SCLCloudShadow     = 3
	SCLVegetation      = 4
	SCLNotVegetated    = 5
	SCLWater           = 6
	SCLUnclassified    = 7
	SCLCloudMediumProb = 8
	SCLCloudHighProb   = 9
	SCLThinCirrus      = 10
	SCLSnow            = 11
)

// DefaultCloudClasses are the SCL classes masked by default.
var DefaultCloudClasses = []int{SCLCloudShadow, SCLCloudMediumProb, SCLCloudHighProb, SCLThinCirrus, SCLSnow}

// Reflectance converts digital numbers to surface reflectance as
// (dn + offset) / scale.
func Reflectance(dn *raster.Grid, scale, offset float64) *raster.Grid {
	return dn.Map(func(v float64) float64 { return (v + offset) / scale })
}

// NDVIValue returns (nir-red)/(nir+red). Equal bands, including both zero,
// give 0. NaN or negative inputs give invalid.
func NDVIValue(red, nir, invalid float64) float64 {
	if math.IsNaN(red) || math.IsNaN(nir) || red < 0 || nir < 0 {
		return invalid
	}
	if red == nir {
		return 0
	}
	return (nir - red) / (nir + red)
}

// NDVI computes the index pixel by pixel. Both bands must share one grid.
func NDVI(red, nir *raster.Grid, invalid float64) (*raster.Grid, error) {
	if !red.SameShape(nir) {
		return nil, fmt.Errorf("red is %dx%d but nir is %dx%d", red.Width, red.Height, nir.Width, nir.Height)
	}
	if !raster.SameGeoRef(red.GeoRef, nir.GeoRef) {
		return nil, fmt.Errorf("red and nir are not co-registered")
	}

	out := raster.New(red.Width, red.Height, red.GeoRef)
	for i := range out.Data {
		out.Data[i] = NDVIValue(red.Data[i], nir.Data[i], invalid)
	}
	return out, nil
}

// CloudMask returns 1 where the SCL class is one of classes and 0
// elsewhere, including where the SCL has no data.
func CloudMask(scl *raster.Grid, classes []int) *raster.Grid {
	masked := make(map[int]bool, len(classes))
	for _, c := range classes {
		masked[c] = true
	}
	return scl.Map(func(v float64) float64 {
		if !math.IsNaN(v) && masked[int(v)] {
			return 1
		}
		return 0
	})
}

// ApplyMask replaces samples of g where mask is 1 with invalid.
func ApplyMask(g, mask *raster.Grid, invalid float64) (*raster.Grid, error) {
	if !g.SameShape(mask) {
		return nil, fmt.Errorf("mask is %dx%d, raster is %dx%d", mask.Width, mask.Height, g.Width, g.Height)
	}
	out := g.Clone()
	for i, m := range mask.Data {
		if m == 1 {
			out.Data[i] = invalid
		}
	}
	return out, nil
}

// MaskedFraction returns the share of samples set in mask.
func MaskedFraction(mask *raster.Grid) float64 {
	if len(mask.Data) == 0 {
		return 0
	}
	n := 0
	for _, m := range mask.Data {
		if m == 1 {
			n++
		}
	}
	return float64(n) / float64(len(mask.Data))
}
