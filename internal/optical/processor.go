package optical

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/rkm/sentinel-pipeline/internal/raster"
	"github.com/rkm/sentinel-pipeline/internal/safe"
)

// Output names.
const (
	NameNDVI            = "s2_ndvi"
	NameNDVICloudMasked = "s2_ndvi_cloud_masked"
	NameCloudMask       = "s2_cloud_mask"
)

// Options configures the optical processor.
type Options struct {
	Window            raster.Window
	ReflectanceScale  float64
	ReflectanceOffset float64
	CloudClasses      []int
	Invalid           float64
}

// Processor turns a Sentinel-2 L2A product into NDVI rasters.
type Processor struct {
	source raster.Source
	opts   Options
	logger *slog.Logger
}

// NewProcessor creates an optical processor reading bands through source.
func NewProcessor(source raster.Source, opts Options) *Processor {
	return &Processor{
		source: source,
		opts:   opts,
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the processor.
func (p *Processor) WithLogger(logger *slog.Logger) *Processor {
	p.logger = logger
	return p
}

// Name implements the pipeline stage interface.
func (p *Processor) Name() string {
	return "optical"
}

// Process reads the red, near-infrared and scene classification bands of
// the product at archive and derives NDVI with and without cloud masking.
func (p *Processor) Process(ctx context.Context, archive string) (*raster.Output, error) {
	prod, err := safe.Open(archive)
	if err != nil {
		return nil, err
	}

	bands, err := prod.Locate(map[string]string{
		"red": safe.S2Band("R10m", "B04_10m"),
		"nir": safe.S2Band("R10m", "B08_10m"),
		"scl": safe.S2Band("R20m", "SCL_20m"),
	})
	if err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "reading optical bands",
		slog.String("product", prod.Name()),
		slog.String("window", p.opts.Window.String()),
	)

	redDN, err := p.source.ReadWindow(ctx, bands["red"], p.opts.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to read red band: %w", err)
	}
	nirDN, err := p.source.ReadWindow(ctx, bands["nir"], p.opts.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to read nir band: %w", err)
	}

	scl, err := p.readSCL(ctx, bands["scl"], redDN)
	if err != nil {
		return nil, err
	}

	red := Reflectance(redDN, p.opts.ReflectanceScale, p.opts.ReflectanceOffset)
	nir := Reflectance(nirDN, p.opts.ReflectanceScale, p.opts.ReflectanceOffset)

	ndvi, err := NDVI(red, nir, p.opts.Invalid)
	if err != nil {
		return nil, err
	}

	mask := CloudMask(scl, p.opts.CloudClasses)
	masked, err := ApplyMask(ndvi, mask, p.opts.Invalid)
	if err != nil {
		return nil, err
	}

	attrs := []any{slog.Float64("cloud_fraction", MaskedFraction(mask))}
	if summary, err := raster.Summarize(masked); err == nil {
		attrs = append(attrs, slog.Any("ndvi", summary))
	}
	p.logger.InfoContext(ctx, "computed NDVI", attrs...)

	ndviStyle := raster.Style{Colormap: raster.ColormapRdYlGn, Min: -1, Max: 1, Label: "NDVI"}
	return &raster.Output{
		Reference: redDN,
		Rasters: []*raster.Derived{
			{
				Name:        NameNDVI,
				Description: "NDVI from B04 and B08 surface reflectance",
				Grid:        ndvi,
				Style:       withTitle(ndviStyle, "Sentinel-2 NDVI"),
				Source:      bands["red"],
			},
			{
				Name:        NameNDVICloudMasked,
				Description: fmt.Sprintf("NDVI with SCL classes %v masked", p.opts.CloudClasses),
				Grid:        masked,
				Style:       withTitle(ndviStyle, "Sentinel-2 NDVI, clouds masked"),
				Source:      bands["red"],
			},
			{
				Name:        NameCloudMask,
				Description: "Cloud and shadow mask from the scene classification layer (1 = masked)",
				Grid:        mask,
				Style:       raster.Style{Colormap: raster.ColormapGray, Min: 0, Max: 1, Title: "Cloud mask", Label: "masked"},
				Source:      bands["scl"],
			},
		},
	}, nil
}

// readSCL reads the classification window covering the ground extent of
// ref and resamples it onto ref's grid.
func (p *Processor) readSCL(ctx context.Context, path string, ref *raster.Grid) (*raster.Grid, error) {
	info, err := p.source.Info(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect scene classification: %w", err)
	}

	refX, _ := ref.GeoRef.PixelSize()
	sclX, _ := info.GeoRef.PixelSize()
	factor := 1
	if refX > 0 && sclX > refX {
		factor = int(math.Round(sclX / refX))
	}

	// ref may have been clipped; take its origin relative to the read window
	w := raster.Window{
		X:      p.opts.Window.X,
		Y:      p.opts.Window.Y,
		Width:  ref.Width,
		Height: ref.Height,
	}
	if p.opts.Window.X < 0 {
		w.X = 0
	}
	if p.opts.Window.Y < 0 {
		w.Y = 0
	}

	sclWin := w.Shrink(factor)
	scl, err := p.source.ReadWindow(ctx, path, sclWin)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene classification: %w", err)
	}

	phaseX, phaseY := w.Phase(factor)
	up := scl.Upsample(factor, phaseX, phaseY, ref.Width, ref.Height)
	up.GeoRef = ref.GeoRef
	return up, nil
}

func withTitle(s raster.Style, title string) raster.Style {
	s.Title = title
	return s
}
