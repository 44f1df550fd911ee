package ingest

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/paulmach/orb"

	"github.com/rkm/sentinel-pipeline/pkg/footprint"
)

// Pair is a Sentinel-1 product matched with a Sentinel-2 product.
type Pair struct {
	S1 Product
	S2 Product

	// Overlap is area(S1 ∩ S2) / area(S2) in percent.
	Overlap float64
	// AOICoverage is area(S1 ∩ S2 ∩ AOI) / area(AOI) in percent.
	AOICoverage float64
	// TimeDelta is the absolute difference of the acquisition starts.
	TimeDelta time.Duration
}

// LogValue implements slog.LogValuer.
func (p Pair) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("s1", p.S1.Name),
		slog.String("s2", p.S2.Name),
		slog.Float64("overlap_pct", p.Overlap),
		slog.Float64("aoi_coverage_pct", p.AOICoverage),
		slog.Duration("time_delta", p.TimeDelta),
	)
}

// SelectPair returns the best pair among every combination of s1s and
// s2s whose footprints intersect inside aoi and cover at least minCoverage
// percent of it. A pair that covers none of aoi never qualifies. Pairs are ranked by the smallest acquisition time
// difference, then the larger overlap, then the larger AOI coverage, and
// finally by product names so the choice is deterministic.
func SelectPair(aoi orb.Bound, s1s, s2s []Product, minCoverage float64) (Pair, error) {
	var candidates []Pair
	for _, s1 := range s1s {
		for _, s2 := range s2s {
			inter := footprint.Intersection(s1.Footprint, s2.Footprint)
			if inter == nil {
				continue
			}

			coverage := footprint.Coverage(aoi, inter)
			if coverage <= 0 || coverage < minCoverage {
				continue
			}

			delta := s1.Start.Sub(s2.Start)
			if delta < 0 {
				delta = -delta
			}
			candidates = append(candidates, Pair{
				S1:          s1,
				S2:          s2,
				Overlap:     footprint.OverlapPercent(s1.Footprint, s2.Footprint),
				AOICoverage: coverage,
				TimeDelta:   delta,
			})
		}
	}

	if len(candidates) == 0 {
		return Pair{}, fmt.Errorf("%w: %d Sentinel-1 and %d Sentinel-2 candidates, minimum AOI coverage %.1f%%",
			ErrNoMatch, len(s1s), len(s2s), minCoverage)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.TimeDelta != b.TimeDelta {
			return a.TimeDelta < b.TimeDelta
		}
		if a.Overlap != b.Overlap {
			return a.Overlap > b.Overlap
		}
		if a.AOICoverage != b.AOICoverage {
			return a.AOICoverage > b.AOICoverage
		}
		if a.S1.Name != b.S1.Name {
			return a.S1.Name < b.S1.Name
		}
		return a.S2.Name < b.S2.Name
	})
	return candidates[0], nil
}
