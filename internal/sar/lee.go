package sar

import (
	"fmt"
	"math"

	"github.com/rkm/sentinel-pipeline/internal/raster"
)

// LeeFilter applies the Lee local-statistics speckle filter with a
// size x size window. NaN samples are filled with fill for the statistics
// and are NaN again in the output. The output has the dimensions and
// referencing of db.
func LeeFilter(db *raster.Grid, size int, fill float64) (*raster.Grid, error) {
	if size < 1 || size%2 == 0 {
		return nil, fmt.Errorf("filter size must be a positive odd number, got %d", size)
	}

	temp := db.Map(func(v float64) float64 {
		if math.IsNaN(v) {
			return fill
		}
		return v
	})

	sq := make([]float64, len(temp.Data))
	for i, v := range temp.Data {
		sq[i] = v * v
	}

	mean, err := boxMean(temp.Data, temp.Width, temp.Height, size)
	if err != nil {
		return nil, fmt.Errorf("failed to compute local mean: %w", err)
	}
	meanSq, err := boxMean(sq, temp.Width, temp.Height, size)
	if err != nil {
		return nil, fmt.Errorf("failed to compute local mean square: %w", err)
	}

	overall, err := raster.PopulationVariance(temp)
	if err != nil {
		return nil, fmt.Errorf("failed to compute scene variance: %w", err)
	}

	out := raster.New(db.Width, db.Height, db.GeoRef)
	for i, v := range temp.Data {
		if math.IsNaN(db.Data[i]) {
			out.Data[i] = math.NaN()
			continue
		}

		variance := meanSq[i] - mean[i]*mean[i]
		if variance < 0 {
			variance = 0
		}

		denom := variance + overall
		if denom == 0 {
			out.Data[i] = mean[i]
			continue
		}
		out.Data[i] = mean[i] + variance/denom*(v-mean[i])
	}
	return out, nil
}

// LocalMean returns the size x size neighbourhood mean of g.
func LocalMean(g *raster.Grid, size int) (*raster.Grid, error) {
	data, err := boxMean(g.Data, g.Width, g.Height, size)
	if err != nil {
		return nil, err
	}
	out := raster.New(g.Width, g.Height, g.GeoRef)
	out.Data = data
	return out, nil
}

// checkBox validates the arguments shared by both box filter builds.
func checkBox(src []float64, width, height, size int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("box filter needs a non-empty buffer, got %dx%d", width, height)
	}
	if len(src) != width*height {
		return fmt.Errorf("box filter buffer holds %d samples, want %dx%d", len(src), width, height)
	}
	if size < 1 || size%2 == 0 {
		return fmt.Errorf("box filter size must be a positive odd number, got %d", size)
	}
	return nil
}
