// Package footprint provides product footprint geometry: parsing catalog
// GeoJSON and WKT outlines, and the overlap measures used to pair
// Sentinel-1 and Sentinel-2 acquisitions.
package footprint

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// FromGeoJSON parses a GeoJSON geometry object into a polygon.
// MultiPolygons (typically antimeridian or orbit-split footprints) resolve to
// their largest member.
func FromGeoJSON(raw json.RawMessage) (orb.Polygon, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("geometry is empty")
	}

	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal GeoJSON geometry: %w", err)
	}

	return toPolygon(g.Geometry())
}

// FromWKT parses a WKT POLYGON or MULTIPOLYGON string. OData geography
// literals (geography'SRID=4326;POLYGON(...)') are unwrapped first.
func FromWKT(s string) (orb.Polygon, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "geography'") {
		s = strings.TrimSuffix(s[len("geography'"):], "'")
	}
	if s == "" {
		return nil, fmt.Errorf("empty WKT string")
	}
	if i := strings.Index(s, ";"); i != -1 && strings.HasPrefix(strings.ToUpper(s), "SRID=") {
		s = s[i+1:]
	}

	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse WKT: %w", err)
	}

	return toPolygon(g)
}

// FromBBox creates a rectangular polygon from [west, south, east, north].
func FromBBox(bbox []float64) (orb.Polygon, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values [west, south, east, north], got %d", len(bbox))
	}

	west, south, east, north := bbox[0], bbox[1], bbox[2], bbox[3]
	if west >= east || south >= north {
		return nil, fmt.Errorf("bbox is degenerate: %v", bbox)
	}
	if west < -180 || east > 180 || south < -90 || north > 90 {
		return nil, fmt.Errorf("bbox outside lon/lat range: %v", bbox)
	}

	return orb.Bound{Min: orb.Point{west, south}, Max: orb.Point{east, north}}.ToPolygon(), nil
}

// ToWKT renders a polygon as WKT, e.g. for an OData Intersects filter.
func ToWKT(p orb.Polygon) string {
	return wkt.MarshalString(p)
}

// Area returns the planar area of p in square degrees. Only ratios of
// planar areas are meaningful.
func Area(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	return planar.Area(p)
}

// AreaKm2 returns the geodesic area of p in square kilometres.
func AreaKm2(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	return geo.Area(p) / 1e6
}

// Intersection returns the intersection of the outer rings of a and b.
// The clip polygon b is treated as convex, which holds for Sentinel
// swath and tile footprints. Holes are ignored. The result is nil when the
// polygons do not overlap.
func Intersection(a, b orb.Polygon) orb.Polygon {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	if !a.Bound().Intersects(b.Bound()) {
		return nil
	}

	r := clipRing(a[0], b[0])
	if len(r) < 4 {
		return nil
	}
	if planar.Area(r) == 0 {
		return nil
	}
	return orb.Polygon{r}
}

// OverlapPercent returns area(a ∩ b) / area(b) * 100.
func OverlapPercent(a, b orb.Polygon) float64 {
	denom := Area(b)
	if denom == 0 {
		return 0
	}
	return Area(Intersection(a, b)) / denom * 100
}

// Coverage returns the percentage of the area of interest covered by p.
func Coverage(aoi orb.Bound, p orb.Polygon) float64 {
	aoiArea := planar.Area(aoi.ToPolygon())
	if aoiArea == 0 || len(p) == 0 {
		return 0
	}

	// clip uses its input as scratch space
	clipped := clip.Polygon(aoi, p.Clone())
	if len(clipped) == 0 {
		return 0
	}
	return planar.Area(clipped) / aoiArea * 100
}

func toPolygon(g orb.Geometry) (orb.Polygon, error) {
	switch g := g.(type) {
	case orb.Polygon:
		if len(g) == 0 || len(g[0]) < 4 {
			return nil, fmt.Errorf("polygon has no valid outer ring")
		}
		return g, nil
	case orb.MultiPolygon:
		var best orb.Polygon
		bestArea := -1.0
		for _, p := range g {
			if len(p) == 0 || len(p[0]) < 4 {
				continue
			}
			if a := planar.Area(p); a > bestArea {
				best, bestArea = p, a
			}
		}
		if best == nil {
			return nil, fmt.Errorf("multipolygon has no valid members")
		}
		return best, nil
	case orb.Bound:
		return g.ToPolygon(), nil
	case nil:
		return nil, fmt.Errorf("geometry is nil")
	default:
		return nil, fmt.Errorf("unsupported geometry type: %s", g.GeoJSONType())
	}
}
