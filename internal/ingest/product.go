// Package ingest finds, pairs and downloads Sentinel-1 and Sentinel-2
// products for an area of interest.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/rkm/sentinel-pipeline/internal/cdse"
	"github.com/rkm/sentinel-pipeline/internal/stac"
	"github.com/rkm/sentinel-pipeline/pkg/footprint"
)

// ErrNoMatch is returned when no Sentinel-1 and Sentinel-2 products overlap.
var ErrNoMatch = errors.New("no overlapping Sentinel-1/Sentinel-2 pair")

// Catalog is the subset of the CDSE client used by the ingester.
type Catalog interface {
	Authenticate(ctx context.Context, username, password string) error
	Search(ctx context.Context, q cdse.Query, maxResults int) ([]cdse.Product, error)
	Download(ctx context.Context, p cdse.Product, dest string) (int64, error)
}

// Product is a resolved catalog product.
type Product struct {
	ID            string
	Name          string
	Collection    string
	ProductType   string
	Start         time.Time
	End           time.Time
	Footprint     orb.Polygon
	ContentLength int64
}

// FromCatalog resolves the footprint of a catalog entry, preferring the
// GeoJSON footprint over the EWKT one.
func FromCatalog(p cdse.Product, collection, productType string) (Product, error) {
	var (
		poly orb.Polygon
		err  error
	)
	switch {
	case len(p.GeoFootprint) > 0 && string(p.GeoFootprint) != "null":
		poly, err = footprint.FromGeoJSON(p.GeoFootprint)
	case p.Footprint != "":
		poly, err = footprint.FromWKT(p.Footprint)
	default:
		err = fmt.Errorf("no footprint")
	}
	if err != nil {
		return Product{}, fmt.Errorf("product %s: %w", p.Name, err)
	}

	return Product{
		ID:            p.ID,
		Name:          p.Name,
		Collection:    collection,
		ProductType:   productType,
		Start:         p.ContentDate.Start,
		End:           p.ContentDate.End,
		Footprint:     poly,
		ContentLength: p.ContentLength,
	}, nil
}

// Ref returns the catalog reference used for downloads.
func (p Product) Ref() cdse.Product {
	return cdse.Product{ID: p.ID, Name: p.Name, ContentLength: p.ContentLength}
}

// Item describes the product as a STAC item; href is the local archive.
func (p Product) Item(href string) *stac.Item {
	return stac.ProductItem(stac.ProductInfo{
		ID:            p.ID,
		Name:          p.Name,
		Collection:    p.Collection,
		ProductType:   p.ProductType,
		Start:         p.Start,
		End:           p.End,
		Footprint:     p.Footprint,
		ContentLength: p.ContentLength,
		Href:          href,
	})
}
