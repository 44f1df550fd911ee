// Package pipeline runs ingestion and the raster stages in order and writes
// their outputs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/multierr"

	"github.com/rkm/sentinel-pipeline/internal/gdalio"
	"github.com/rkm/sentinel-pipeline/internal/ingest"
	"github.com/rkm/sentinel-pipeline/internal/raster"
	"github.com/rkm/sentinel-pipeline/internal/render"
	"github.com/rkm/sentinel-pipeline/internal/stac"
)

// Stage names used in StageError.
const (
	StageIngest  = "ingest"
	StagePublish = "publish"
)

// Ingester finds and downloads a Sentinel-1/Sentinel-2 pair.
type Ingester interface {
	Run(ctx context.Context) (*ingest.Result, error)
}

// RasterStage derives rasters from one downloaded archive.
type RasterStage interface {
	Name() string
	Process(ctx context.Context, archive string) (*raster.Output, error)
}

// Publisher uploads the output tree.
type Publisher interface {
	Publish(ctx context.Context, root string) (int, error)
}

// WriteFunc writes a grid as a GeoTIFF.
type WriteFunc func(path string, g *raster.Grid) error

// FootprintFunc returns the lon/lat outline of a grid.
type FootprintFunc func(ref raster.GeoRef, width, height int) (orb.Polygon, error)

// Report summarizes a successful run.
type Report struct {
	RunID     string
	Pair      ingest.Pair
	Files     []string
	Published int
	Duration  time.Duration
}

// Driver runs the pipeline stages strictly in sequence.
type Driver struct {
	ingester  Ingester
	sar       RasterStage
	optical   RasterStage
	renderer  *render.Renderer
	outputDir string

	publisher Publisher
	write     WriteFunc
	footprint FootprintFunc
	runID     string
	now       func() time.Time
	logger    *slog.Logger
}

// NewDriver creates a driver writing below outputDir.
func NewDriver(ingester Ingester, sar, optical RasterStage, renderer *render.Renderer, outputDir string) *Driver {
	return &Driver{
		ingester:  ingester,
		sar:       sar,
		optical:   optical,
		renderer:  renderer,
		outputDir: outputDir,
		write:     gdalio.WriteGeoTIFF,
		footprint: gdalio.Footprint,
		now:       time.Now,
		logger:    slog.Default(),
	}
}

// WithLogger sets a custom logger for the driver.
func (d *Driver) WithLogger(logger *slog.Logger) *Driver {
	d.logger = logger
	return d
}

// WithPublisher enables publishing of the output tree.
func (d *Driver) WithPublisher(p Publisher) *Driver {
	d.publisher = p
	return d
}

// WithRunID tags STAC items and logs with id.
func (d *Driver) WithRunID(id string) *Driver {
	d.runID = id
	return d
}

// WithWriter replaces the GeoTIFF writer.
func (d *Driver) WithWriter(w WriteFunc) *Driver {
	d.write = w
	return d
}

// WithFootprint replaces the footprint function.
func (d *Driver) WithFootprint(f FootprintFunc) *Driver {
	d.footprint = f
	return d
}

type stageRun struct {
	stage      RasterStage
	archive    string
	product    ingest.Product
	dir        string
	collection string
}

// Run ingests a product pair and runs the SAR and optical stages on it.
// The first failure aborts the run with a *StageError. Files the failing
// stage wrote are removed and later stages do not run.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	start := d.now()
	report := &Report{RunID: d.runID}

	d.logger.InfoContext(ctx, "starting stage", slog.String("stage", StageIngest))
	res, err := d.ingester.Run(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageIngest, Err: err}
	}
	report.Pair = res.Pair

	runs := []stageRun{
		{d.sar, res.S1Archive, res.Pair.S1, "sentinel1", "sentinel-1-derived"},
		{d.optical, res.S2Archive, res.Pair.S2, "sentinel2", "sentinel-2-derived"},
	}
	for _, r := range runs {
		d.logger.InfoContext(ctx, "starting stage",
			slog.String("stage", r.stage.Name()),
			slog.String("archive", r.archive),
		)

		files, err := d.runStage(ctx, r, res.Selection)
		if err != nil {
			return nil, &StageError{Stage: r.stage.Name(), Err: err}
		}
		report.Files = append(report.Files, files...)
	}

	if d.publisher != nil {
		d.logger.InfoContext(ctx, "starting stage", slog.String("stage", StagePublish))
		n, err := d.publisher.Publish(ctx, d.outputDir)
		if err != nil {
			return nil, &StageError{Stage: StagePublish, Err: err}
		}
		report.Published = n
	}

	report.Duration = d.now().Sub(start)
	d.logger.InfoContext(ctx, "pipeline complete",
		slog.Int("files", len(report.Files)),
		slog.Int("published", report.Published),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

func (d *Driver) runStage(ctx context.Context, r stageRun, selection string) (files []string, err error) {
	out, err := r.stage.Process(ctx, r.archive)
	if err != nil {
		return nil, err
	}
	if out.Reference == nil {
		return nil, fmt.Errorf("stage returned no reference grid")
	}
	if err := raster.CheckCoRegistered(out.Reference, out.Rasters...); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(d.outputDir, r.dir)
	ref := out.Reference
	footprint, err := d.footprint(ref.GeoRef, ref.Width, ref.Height)
	if err != nil {
		return nil, fmt.Errorf("failed to compute footprint: %w", err)
	}

	productHref, err := filepath.Rel(dir, selection)
	if err != nil {
		productHref = selection
	}

	// paths are recorded before writing so a half-written file is removed too
	var pending []string
	defer func() {
		if err != nil {
			d.discard(ctx, dir, pending)
			files = nil
		}
	}()

	for _, dr := range out.Rasters {
		tif := filepath.Join(dir, dr.Name+".tif")
		png := filepath.Join(dir, dr.Name+".png")
		item := filepath.Join(dir, dr.Name+".json")

		pending = append(pending, tif)
		if err := d.write(tif, dr.Grid); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", dr.Name, err)
		}
		pending = append(pending, png)
		if err := d.renderer.Raster(png, dr); err != nil {
			return nil, err
		}

		pending = append(pending, item)
		if err := stac.WriteJSON(item, stac.DerivedItem(stac.DerivedInfo{
			Raster:      dr,
			Collection:  r.collection,
			Footprint:   footprint,
			Product:     r.product.Name,
			ProductHref: filepath.ToSlash(productHref),
			Datetime:    r.product.Start,
			GeoTIFF:     filepath.Base(tif),
			PNG:         filepath.Base(png),
			RunID:       d.runID,
			Created:     d.now(),
		})); err != nil {
			return nil, fmt.Errorf("failed to write item for %s: %w", dr.Name, err)
		}

		d.logger.DebugContext(ctx, "wrote derived raster",
			slog.String("name", dr.Name),
			slog.String("dir", dir),
		)
	}

	for _, p := range out.Panels {
		path := filepath.Join(dir, p.Name+".png")
		pending = append(pending, path)
		if err := d.renderer.Panel(path, p, out.Lookup(p.Left), out.Lookup(p.Right)); err != nil {
			return nil, err
		}
	}

	d.logger.InfoContext(ctx, "stage complete",
		slog.String("stage", r.stage.Name()),
		slog.Int("rasters", len(out.Rasters)),
		slog.Int("panels", len(out.Panels)),
	)
	return pending, nil
}

// discard removes the files of a failed stage, and dir when that leaves
// it empty.
func (d *Driver) discard(ctx context.Context, dir string, paths []string) {
	var errs error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, err)
		}
	}
	// only removed when empty
	_ = os.Remove(dir)

	if errs != nil {
		d.logger.WarnContext(ctx, "failed to remove partial stage output",
			slog.String("dir", dir),
			slog.String("error", errs.Error()),
		)
	}
}
