package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"

	"github.com/rkm/sentinel-pipeline/internal/cdse"
	"github.com/rkm/sentinel-pipeline/internal/stac"
	"github.com/rkm/sentinel-pipeline/pkg/footprint"
)

// Archive and selection file names inside the data directory.
const (
	S1Archive     = "Sentinel1_product.zip"
	S2Archive     = "Sentinel2_product.zip"
	SelectionFile = "selection.json"
)

// Options configures an ingestion run.
type Options struct {
	Username string
	Password string

	AOI   orb.Bound
	Start time.Time
	End   time.Time

	S1ProductType string
	S2ProductType string

	MaxResults     int
	MinAOICoverage float64

	DataDir string
}

// Result is the outcome of a successful ingestion.
type Result struct {
	Pair      Pair
	S1Archive string
	S2Archive string
	Selection string
}

// Ingester runs search, selection and download against a catalog.
type Ingester struct {
	catalog Catalog
	opts    Options
	logger  *slog.Logger
}

// NewIngester creates an ingester.
func NewIngester(catalog Catalog, opts Options) *Ingester {
	return &Ingester{
		catalog: catalog,
		opts:    opts,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the ingester.
func (i *Ingester) WithLogger(logger *slog.Logger) *Ingester {
	i.logger = logger
	return i
}

// Run authenticates, searches both missions, selects the best pair,
// downloads both archives and records the selection.
func (i *Ingester) Run(ctx context.Context) (*Result, error) {
	if err := i.catalog.Authenticate(ctx, i.opts.Username, i.opts.Password); err != nil {
		return nil, err
	}

	s1s, err := i.search(ctx, cdse.CollectionSentinel1, i.opts.S1ProductType)
	if err != nil {
		return nil, err
	}
	s2s, err := i.search(ctx, cdse.CollectionSentinel2, i.opts.S2ProductType)
	if err != nil {
		return nil, err
	}

	pair, err := SelectPair(i.opts.AOI, s1s, s2s, i.opts.MinAOICoverage)
	if err != nil {
		return nil, err
	}
	i.logger.InfoContext(ctx, "selected pair", slog.Any("pair", pair))

	res := &Result{
		Pair:      pair,
		S1Archive: filepath.Join(i.opts.DataDir, S1Archive),
		S2Archive: filepath.Join(i.opts.DataDir, S2Archive),
		Selection: filepath.Join(i.opts.DataDir, SelectionFile),
	}

	if _, err := i.catalog.Download(ctx, pair.S1.Ref(), res.S1Archive); err != nil {
		return nil, err
	}
	if _, err := i.catalog.Download(ctx, pair.S2.Ref(), res.S2Archive); err != nil {
		return nil, err
	}

	ic := stac.NewItemCollection([]*stac.Item{
		pair.S1.Item(S1Archive),
		pair.S2.Item(S2Archive),
	})
	ic.AddLink("self", SelectionFile, "application/geo+json")
	if err := stac.WriteJSON(res.Selection, ic); err != nil {
		return nil, fmt.Errorf("failed to write selection: %w", err)
	}

	return res, nil
}

func (i *Ingester) search(ctx context.Context, collection, productType string) ([]Product, error) {
	aoi := i.opts.AOI.ToPolygon()
	start, end := i.opts.Start, i.opts.End

	found, err := i.catalog.Search(ctx, cdse.Query{
		Collection:  collection,
		ProductType: productType,
		Intersects:  footprint.ToWKT(aoi),
		Start:       &start,
		End:         &end,
		OrderBy:     "ContentDate/Start asc",
	}, i.opts.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("%s search failed: %w", collection, err)
	}

	products := make([]Product, 0, len(found))
	for _, p := range found {
		prod, err := FromCatalog(p, collection, productType)
		if err != nil {
			i.logger.WarnContext(ctx, "skipping product",
				slog.String("name", p.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		products = append(products, prod)
	}

	i.logger.InfoContext(ctx, "products found",
		slog.String("collection", collection),
		slog.String("product_type", productType),
		slog.Int("count", len(products)),
	)
	return products, nil
}
