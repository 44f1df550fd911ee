// Package gdalio reads and writes rasters through GDAL.
package gdalio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/airbusgeo/godal"
	"go.uber.org/multierr"

	"github.com/rkm/sentinel-pipeline/internal/raster"
)

var registerOnce sync.Once

// Register registers every GDAL driver. It is safe to call more than once.
func Register() {
	registerOnce.Do(godal.RegisterAll)
}

// DefaultStripRows is the minimum number of rows read per request.
const DefaultStripRows = 256

// Reader reads single-band windows from GDAL datasets in row strips.
type Reader struct {
	stripRows int
	logger    *slog.Logger
}

// NewReader creates a Reader and registers the GDAL drivers.
func NewReader() *Reader {
	Register()
	return &Reader{
		stripRows: DefaultStripRows,
		logger:    slog.Default(),
	}
}

// WithLogger sets a custom logger for the reader. GDAL warnings are logged
// to it.
func (r *Reader) WithLogger(logger *slog.Logger) *Reader {
	r.logger = logger
	return r
}

// WithStripRows sets the minimum strip height.
func (r *Reader) WithStripRows(rows int) *Reader {
	if rows > 0 {
		r.stripRows = rows
	}
	return r
}

func (r *Reader) open(path string) (*godal.Dataset, error) {
	ds, err := godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			r.logger.Debug("gdal warning", slog.String("path", path), slog.Int("code", code), slog.String("msg", msg))
			return nil
		}
		return fmt.Errorf("gdal error %d: %s", code, msg)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return ds, nil
}

// Info implements raster.Source.
func (r *Reader) Info(ctx context.Context, path string) (info raster.Info, err error) {
	if err := ctx.Err(); err != nil {
		return raster.Info{}, err
	}

	ds, err := r.open(path)
	if err != nil {
		return raster.Info{}, err
	}
	defer multierr.AppendInvoke(&err, multierr.Invoke(func() error { return ds.Close() }))

	return describe(ds)
}

func describe(ds *godal.Dataset) (raster.Info, error) {
	st := ds.Structure()
	if st.NBands < 1 {
		return raster.Info{}, fmt.Errorf("dataset has no bands")
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		return raster.Info{}, fmt.Errorf("failed to get geotransform: %w", err)
	}

	info := raster.Info{
		Width:  st.SizeX,
		Height: st.SizeY,
		Bands:  st.NBands,
		GeoRef: raster.GeoRef{Transform: gt, Projection: ds.Projection()},
	}
	info.NoData, info.HasNoData = ds.Bands()[0].NoData()
	return info, nil
}

// ReadWindow implements raster.Source. The window is clipped to the
// raster; samples equal to the band's no-data value become NaN.
func (r *Reader) ReadWindow(ctx context.Context, path string, w raster.Window) (grid *raster.Grid, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds, err := r.open(path)
	if err != nil {
		return nil, err
	}
	defer multierr.AppendInvoke(&err, multierr.Invoke(func() error { return ds.Close() }))

	info, err := describe(ds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	win, err := w.Clip(info.Width, info.Height)
	if err != nil {
		return nil, err
	}

	band := ds.Bands()[0]
	rows := r.stripRows
	if bs := band.Structure().BlockSizeY; bs > rows {
		rows = bs
	}

	r.logger.DebugContext(ctx, "reading window",
		slog.String("path", path),
		slog.String("window", win.String()),
		slog.Int("strip_rows", rows),
	)

	grid = raster.New(win.Width, win.Height, info.GeoRef.ForWindow(win))
	for y := 0; y < win.Height; y += rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n := min(rows, win.Height-y)
		strip := grid.Data[y*win.Width : (y+n)*win.Width]
		if err := band.Read(win.X, win.Y+y, strip, win.Width, n); err != nil {
			return nil, fmt.Errorf("failed to read rows %d-%d of %s: %w", win.Y+y, win.Y+y+n, path, err)
		}
	}

	if info.HasNoData && !math.IsNaN(info.NoData) {
		for i, v := range grid.Data {
			if v == info.NoData {
				grid.Data[i] = math.NaN()
			}
		}
	}
	return grid, nil
}

// WriteGeoTIFF writes g as a single-band Float32 GeoTIFF with NaN as the
// no-data value.
func WriteGeoTIFF(path string, g *raster.Grid) (err error) {
	Register()

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, g.Width, g.Height,
		godal.CreationOption("TILED=YES", "COMPRESS=DEFLATE", "PREDICTOR=3", "BIGTIFF=IF_SAFER"))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Invoke(func() error { return ds.Close() }))

	if err := ds.SetGeoTransform(g.GeoRef.Transform); err != nil {
		return fmt.Errorf("failed to set geotransform: %w", err)
	}
	if g.GeoRef.Projection != "" {
		if err := ds.SetProjection(g.GeoRef.Projection); err != nil {
			return fmt.Errorf("failed to set projection: %w", err)
		}
	}

	band := ds.Bands()[0]
	if err := band.SetNoData(math.NaN()); err != nil {
		return fmt.Errorf("failed to set nodata: %w", err)
	}

	buf := make([]float32, len(g.Data))
	for i, v := range g.Data {
		buf[i] = float32(v)
	}
	if err := band.Write(0, 0, buf, g.Width, g.Height); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
