package stac

import (
	"strings"

	gostac "github.com/planetlabs/go-stac"
	rasterext "github.com/planetlabs/go-stac/extensions/raster/v1"
	sarext "github.com/planetlabs/go-stac/extensions/sar/v1"
)

// Schema URIs of extensions whose fields are written directly into item
// properties.
const (
	ProjectionExtension = "https://stac-extensions.github.io/projection/v1.1.0/schema.json"
	ProcessingExtension = "https://stac-extensions.github.io/processing/v1.1.0/schema.json"
)

// schema declares an extension in stac_extensions without encoding any
// fields itself.
type schema string

var _ gostac.Extension = schema("")

func (s schema) URI() string { return string(s) }

func (schema) Encode(map[string]any) error { return nil }

func (schema) Decode(map[string]any) error { return nil }

// sarExtension describes a Sentinel-1 product from the mode and
// polarization fields of its name, e.g. S1A_IW_GRDH_1SDV_... gives IW with
// VV and VH. It returns nil for names it cannot parse.
func sarExtension(name, productType string) *sarext.Item {
	parts := strings.Split(name, "_")
	if len(parts) < 4 || !strings.HasPrefix(parts[0], "S1") || len(parts[3]) != 4 {
		return nil
	}

	var pols []string
	switch parts[3][2:] {
	case "SV":
		pols = []string{"VV"}
	case "SH":
		pols = []string{"HH"}
	case "DV":
		pols = []string{"VV", "VH"}
	case "DH":
		pols = []string{"HH", "HV"}
	default:
		return nil
	}

	return &sarext.Item{
		InstrumentMode: parts[1],
		FrequencyBand:  "C",
		Polarizations:  pols,
		ProductType:    productType,
	}
}

// rasterBand describes the single float32 band of a derived GeoTIFF.
func rasterBand(s summaryValues) *rasterext.Asset {
	return &rasterext.Asset{Bands: []*rasterext.Band{{
		NoData:   "nan",
		DataType: "float32",
		Statistics: &rasterext.Statistics{
			Mean:         s.mean,
			Minimum:      s.min,
			Maximum:      s.max,
			Stdev:        s.stddev,
			ValidPercent: &s.validPercent,
		},
	}}}
}

// summaryValues holds band statistics with non-finite values left nil.
type summaryValues struct {
	min, max, mean, stddev *float64
	validPercent           float64
}
