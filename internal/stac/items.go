package stac

import (
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb"
	gostac "github.com/planetlabs/go-stac"

	"github.com/rkm/sentinel-pipeline/internal/raster"
)

// ProductInfo describes a catalog product.
type ProductInfo struct {
	ID            string // catalog id
	Name          string
	Collection    string // e.g. "SENTINEL-1"
	ProductType   string
	Start         time.Time
	End           time.Time
	Footprint     orb.Polygon
	ContentLength int64

	// Href of the downloaded archive, if any.
	Href string
}

// ProductItem describes a catalog product as a STAC item keyed by product name.
func ProductItem(p ProductInfo) *Item {
	item := NewItem(p.Name, strings.ToLower(p.Collection))
	SetGeometry(item, p.Footprint)

	item.Properties["datetime"] = nil
	item.Properties["start_datetime"] = p.Start.UTC()
	item.Properties["end_datetime"] = p.End.UTC()
	item.Properties["cdse:id"] = p.ID
	item.Properties["product_type"] = p.ProductType

	if platform := platformFromName(p.Name); platform != "" {
		item.Properties["platform"] = platform
	}
	if c := strings.ToLower(p.Collection); c != "" {
		item.Properties["constellation"] = c
	}
	if ext := sarExtension(p.Name, p.ProductType); ext != nil {
		item.Extensions = append(item.Extensions, ext)
	}

	if p.Href != "" {
		item.Assets["archive"] = &Asset{
			Href:  p.Href,
			Title: "SAFE archive",
			Type:  MediaType(p.Href),
			Roles: []string{"data"},
		}
	}
	return item
}

// platformFromName maps a product name prefix such as "S2B" to "sentinel-2b".
func platformFromName(name string) string {
	if len(name) < 3 || name[0] != 'S' || (name[1] != '1' && name[1] != '2') {
		return ""
	}
	return "sentinel-" + strings.ToLower(name[1:3])
}

// DerivedInfo describes a raster written by the pipeline.
type DerivedInfo struct {
	Raster     *raster.Derived
	Collection string

	// Footprint of the raster in lon/lat.
	Footprint orb.Polygon

	// Product is the name of the source product, ProductHref where its
	// item or archive lives.
	Product     string
	ProductHref string
	Datetime    time.Time

	GeoTIFF string
	PNG     string

	RunID   string
	Created time.Time
}

// DerivedItem describes a derived raster with a derived_from link to its
// source product.
func DerivedItem(info DerivedInfo) *Item {
	d := info.Raster
	item := NewItem(info.Product+"_"+d.Name, info.Collection)
	SetGeometry(item, info.Footprint)

	item.Properties["datetime"] = info.Datetime.UTC()
	item.Properties["title"] = d.Name
	item.Properties["description"] = d.Description
	item.Properties["created"] = info.Created.UTC()
	item.Extensions = append(item.Extensions, schema(ProcessingExtension))
	item.Properties["processing:lineage"] = d.Description
	item.Properties["processing:software"] = map[string]string{"sentinel-pipeline": "1.0"}
	if info.RunID != "" {
		item.Properties["pipeline:run_id"] = info.RunID
	}

	var band gostac.Extension
	if g := d.Grid; g != nil {
		item.Extensions = append(item.Extensions, schema(ProjectionExtension))
		item.Properties["proj:shape"] = []int{g.Height, g.Width}
		item.Properties["proj:transform"] = []float64{
			g.GeoRef.Transform[1], g.GeoRef.Transform[2], g.GeoRef.Transform[0],
			g.GeoRef.Transform[4], g.GeoRef.Transform[5], g.GeoRef.Transform[3],
		}
		if g.GeoRef.Projection != "" {
			item.Properties["proj:wkt2"] = g.GeoRef.Projection
		}
		if s, err := raster.Summarize(g); err == nil {
			band = rasterBand(summaryValues{
				min:          finite(s.Min),
				max:          finite(s.Max),
				mean:         finite(s.Mean),
				stddev:       finite(s.StdDev),
				validPercent: 100 * float64(s.Valid) / float64(s.Valid+s.Invalid),
			})
		}
	}

	if info.GeoTIFF != "" {
		item.Assets["data"] = &Asset{
			Href:  info.GeoTIFF,
			Title: d.Name,
			Type:  MediaType(info.GeoTIFF),
			Roles: []string{"data"},
		}
		if band != nil {
			item.Assets["data"].Extensions = []gostac.Extension{band}
		}
	}
	if info.PNG != "" {
		item.Assets["visual"] = &Asset{
			Href:  info.PNG,
			Title: d.Style.Title,
			Type:  MediaType(info.PNG),
			Roles: []string{"overview", "visual"},
		}
	}

	if info.ProductHref != "" {
		item.Links = append(item.Links, &Link{
			Rel:  "derived_from",
			Href: info.ProductHref,
			Type: MediaType(info.ProductHref),
		})
	}
	return item
}

// finite maps NaN and infinities, which JSON cannot encode, to nil.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
