// Package stac builds STAC items describing catalog products and the
// rasters derived from them, wrapping planetlabs/go-stac for core types.
package stac

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	gostac "github.com/planetlabs/go-stac"
)

// Version is the STAC version written into every item.
const Version = "1.0.0"

// Re-export core types from planetlabs/go-stac for convenience
type (
	Item  = gostac.Item
	Asset = gostac.Asset
	Link  = gostac.Link
)

// ItemCollection represents a STAC ItemCollection (GeoJSON FeatureCollection)
type ItemCollection struct {
	Type           string         `json:"type"` // "FeatureCollection"
	Features       []*gostac.Item `json:"features"`
	Links          []*gostac.Link `json:"links"`
	NumberReturned int            `json:"numberReturned"`
}

// NewItemCollection creates a new ItemCollection with the given items.
func NewItemCollection(items []*gostac.Item) *ItemCollection {
	return &ItemCollection{
		Type:           "FeatureCollection",
		Features:       items,
		Links:          make([]*gostac.Link, 0),
		NumberReturned: len(items),
	}
}

// AddLink adds a link to the ItemCollection.
func (ic *ItemCollection) AddLink(rel, href, mediaType string) {
	ic.Links = append(ic.Links, &gostac.Link{
		Rel:  rel,
		Href: href,
		Type: mediaType,
	})
}

// NewItem creates a new STAC Item with the given ID and collection.
func NewItem(id, collection string) *gostac.Item {
	return &gostac.Item{
		Version:    Version,
		Id:         id,
		Collection: collection,
		Properties: make(map[string]any),
		Assets:     make(map[string]*gostac.Asset),
		Links:      make([]*gostac.Link, 0),
	}
}

// SetGeometry sets the item geometry and bbox from a lon/lat polygon.
func SetGeometry(item *gostac.Item, p orb.Polygon) {
	if len(p) == 0 {
		return
	}
	item.Geometry = geojson.NewGeometry(p)
	b := p.Bound()
	item.Bbox = []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
}

// WriteJSON writes v as indented JSON to path, creating parent directories.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// MediaType returns the media type of a local or remote file by extension.
func MediaType(name string) string {
	switch filepath.Ext(name) {
	case ".zip":
		return "application/zip"
	case ".tif", ".tiff":
		return "image/tiff; application=geotiff"
	case ".jp2":
		return "image/jp2"
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
