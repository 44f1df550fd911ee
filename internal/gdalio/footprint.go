package gdalio

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"

	"github.com/rkm/sentinel-pipeline/internal/raster"
)

// Footprint returns the outline of a width x height raster in WGS84
// longitude/latitude. A reference without a projection is assumed to be
// geographic already.
func Footprint(ref raster.GeoRef, width, height int) (orb.Polygon, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", width, height)
	}

	corners := [][2]float64{{0, 0}, {float64(width), 0}, {float64(width), float64(height)}, {0, float64(height)}}
	xs := make([]float64, len(corners))
	ys := make([]float64, len(corners))
	gt := ref.Transform
	for i, c := range corners {
		xs[i] = gt[0] + gt[1]*c[0] + gt[2]*c[1]
		ys[i] = gt[3] + gt[4]*c[0] + gt[5]*c[1]
	}

	if ref.Projection != "" {
		Register()

		src, err := godal.NewSpatialRefFromWKT(ref.Projection)
		if err != nil {
			return nil, fmt.Errorf("failed to parse projection: %w", err)
		}
		defer src.Close()

		dst, err := godal.NewSpatialRefFromEPSG(4326)
		if err != nil {
			return nil, fmt.Errorf("failed to create WGS84 reference: %w", err)
		}
		defer dst.Close()

		tr, err := godal.NewTransform(src, dst)
		if err != nil {
			return nil, fmt.Errorf("failed to create transform: %w", err)
		}
		defer tr.Close()

		if err := tr.TransformEx(xs, ys, nil, nil); err != nil {
			return nil, fmt.Errorf("failed to transform footprint: %w", err)
		}
	}

	ring := make(orb.Ring, 0, len(corners)+1)
	for i := range corners {
		ring = append(ring, orb.Point{xs[i], ys[i]})
	}
	ring = append(ring, ring[0])
	if ring.Orientation() == orb.CW {
		ring.Reverse()
	}
	return orb.Polygon{ring}, nil
}
