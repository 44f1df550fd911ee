// Package sar implements the Sentinel-1 backscatter path: radiometric
// scaling, dB conversion, plausibility masking, Lee speckle filtering and
// grey-level co-occurrence texture.
package sar

import (
	"errors"
	"fmt"
	"math"

	"github.com/rkm/sentinel-pipeline/internal/raster"
)

// ErrInvalidData is returned when samples cannot be converted, e.g. a
// non-positive linear value reaching the logarithm.
var ErrInvalidData = errors.New("invalid data")

// ToLinear scales digital numbers to linear sigma0 by dividing by scale.
func ToLinear(dn *raster.Grid, scale float64) *raster.Grid {
	return dn.Map(func(v float64) float64 { return v / scale })
}

// LinearToDB returns 10*log10(x). NaN passes through unchanged.
func LinearToDB(x float64) (float64, error) {
	if math.IsNaN(x) {
		return x, nil
	}
	if x <= 0 || math.IsInf(x, 0) {
		return math.NaN(), fmt.Errorf("%w: cannot take log of %g", ErrInvalidData, x)
	}
	return 10 * math.Log10(x), nil
}

// DBToLinear returns 10^(db/10).
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/10)
}

// ClipFloor raises every non-NaN sample below floor to floor.
func ClipFloor(g *raster.Grid, floor float64) *raster.Grid {
	return g.Map(func(v float64) float64 {
		if v < floor {
			return floor
		}
		return v
	})
}

// GridToDB converts a linear grid to dB. It fails on the first
// non-positive sample; clip or mask beforehand.
func GridToDB(g *raster.Grid) (*raster.Grid, error) {
	out := raster.New(g.Width, g.Height, g.GeoRef)
	for i, v := range g.Data {
		db, err := LinearToDB(v)
		if err != nil {
			return nil, fmt.Errorf("pixel (%d,%d): %w", i%g.Width, i/g.Width, err)
		}
		out.Data[i] = db
	}
	return out, nil
}

// MaskRange sets samples outside [lo, hi] to NaN and returns the new grid
// with the number of samples masked.
func MaskRange(g *raster.Grid, lo, hi float64) (*raster.Grid, int) {
	masked := 0
	out := g.Map(func(v float64) float64 {
		if v < lo || v > hi {
			masked++
			return math.NaN()
		}
		return v
	})
	return out, masked
}
