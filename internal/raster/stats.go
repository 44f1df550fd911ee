package raster

import (
	"fmt"
	"log/slog"

	"github.com/montanaflynn/stats"
)

// Summary describes the valid samples of a grid.
type Summary struct {
	Min     float64
	Max     float64
	Mean    float64
	StdDev  float64
	Valid   int
	Invalid int
}

// Summarize computes min, max, mean and population standard deviation over
// the non-NaN samples of g.
func Summarize(g *Grid) (Summary, error) {
	valid := stats.Float64Data(g.Valid())
	s := Summary{Valid: len(valid), Invalid: len(g.Data) - len(valid)}
	if len(valid) == 0 {
		return s, fmt.Errorf("grid has no valid samples")
	}

	var err error
	if s.Min, err = valid.Min(); err != nil {
		return s, err
	}
	if s.Max, err = valid.Max(); err != nil {
		return s, err
	}
	if s.Mean, err = valid.Mean(); err != nil {
		return s, err
	}
	if s.StdDev, err = valid.StandardDeviationPopulation(); err != nil {
		return s, err
	}
	return s, nil
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("min", s.Min),
		slog.Float64("max", s.Max),
		slog.Float64("mean", s.Mean),
		slog.Float64("stddev", s.StdDev),
		slog.Int("valid", s.Valid),
		slog.Int("invalid", s.Invalid),
	)
}

// PopulationVariance returns the variance of every sample in g; g must not
// contain NaN.
func PopulationVariance(g *Grid) (float64, error) {
	return stats.PopulationVariance(stats.Float64Data(g.Data))
}
