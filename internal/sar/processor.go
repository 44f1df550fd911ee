package sar

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
	NameSigma0DB    = "s1_sigma0_db"
	NameLeeFiltered = "s1_lee_filtered"
	PanelFiltering  = "s1_before_after_filtering"
)

// TextureName returns the output name of a texture descriptor raster.
func TextureName(d Descriptor) string {
	return "s1_texture_" + string(d)
}

// Options configures the SAR processor.
type Options struct {
	Polarization string
	Window       raster.Window

	LinearScale float64
	LinearFloor float64
	DBMin       float64
	DBMax       float64

	FilterSize int
	Texture    TextureOptions

	// Patch is the window, inside Window, summarized by PatchTexture.
	Patch raster.Window
	// PatchLevels is the number of grey levels of the patch summary.
	// Zero uses Texture.Levels.
	PatchLevels int
}

// Processor turns a Sentinel-1 GRD product into calibrated, filtered and
// texture rasters.
type Processor struct {
	source raster.Source
	opts   Options
	logger *slog.Logger
}

// NewProcessor creates a SAR processor reading bands through source.
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
	return "sar"
}

// Process reads the measurement band of the product at archive and derives
// every SAR raster from it.
func (p *Processor) Process(ctx context.Context, archive string) (*raster.Output, error) {
	prod, err := safe.Open(archive)
	if err != nil {
		return nil, err
	}

	entry, err := prod.Find(safe.S1Measurement(p.opts.Polarization))
	if err != nil {
		return nil, err
	}
	band := prod.RasterPath(entry)

	p.logger.InfoContext(ctx, "reading SAR measurement",
		slog.String("product", prod.Name()),
		slog.String("band", entry),
		slog.String("window", p.opts.Window.String()),
	)

	dn, err := p.source.ReadWindow(ctx, band, p.opts.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", entry, err)
	}

	return p.derive(ctx, dn, band)
}

func (p *Processor) derive(ctx context.Context, dn *raster.Grid, band string) (*raster.Output, error) {
	linear := ClipFloor(ToLinear(dn, p.opts.LinearScale), p.opts.LinearFloor)
	db, err := GridToDB(linear)
	if err != nil {
		return nil, err
	}

	db, masked := MaskRange(db, p.opts.DBMin, p.opts.DBMax)
	summary, err := raster.Summarize(db)
	if err != nil {
		return nil, fmt.Errorf("%w: no backscatter left after masking to [%g, %g] dB",
			ErrInvalidData, p.opts.DBMin, p.opts.DBMax)
	}
	p.logger.DebugContext(ctx, "sigma0 in dB",
		slog.Int("masked", masked),
		slog.Any("stats", summary),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filtered, err := LeeFilter(db, p.opts.FilterSize, p.opts.DBMin)
	if err != nil {
		return nil, err
	}

	style := raster.Style{Colormap: raster.ColormapGray, Min: -25, Max: 5, Label: "dB"}
	out := &raster.Output{Reference: dn}
	out.Rasters = append(out.Rasters,
		&raster.Derived{
			Name:        NameSigma0DB,
			Description: fmt.Sprintf("Sentinel-1 %s sigma0 in dB", p.opts.Polarization),
			Grid:        db,
			Style:       withTitle(style, "Sentinel-1 "+p.opts.Polarization+" backscatter (dB)"),
			Source:      band,
		},
		&raster.Derived{
			Name:        NameLeeFiltered,
			Description: fmt.Sprintf("Lee filtered (%dx%d) sigma0 in dB", p.opts.FilterSize, p.opts.FilterSize),
			Grid:        filtered,
			Style:       withTitle(style, "Lee filtered backscatter (dB)"),
			Source:      band,
		},
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	textures, err := Texture(ctx, filtered, p.opts.Texture)
	if err != nil {
		return nil, fmt.Errorf("failed to compute texture: %w", err)
	}
	for _, d := range Descriptors {
		lo, hi := textureRange(d, p.opts.Texture.Levels)
		out.Rasters = append(out.Rasters, &raster.Derived{
			Name:        TextureName(d),
			Description: fmt.Sprintf("GLCM %s, %dx%d window, %d levels", d, p.opts.Texture.Window, p.opts.Texture.Window, p.opts.Texture.Levels),
			Grid:        textures[d],
			Style: raster.Style{
				Colormap: raster.ColormapViridis,
				Min:      lo,
				Max:      hi,
				Title:    "GLCM " + string(d),
				Label:    string(d),
			},
			Source: band,
		})
	}

	if patch, err := filtered.Region(p.opts.Patch); err == nil {
		popts := p.opts.Texture
		if p.opts.PatchLevels > 0 {
			popts.Levels = p.opts.PatchLevels
		}
		values, err := PatchTexture(patch, popts)
		if err == nil {
			attrs := []any{slog.String("window", p.opts.Patch.String()), slog.Int("levels", popts.Levels)}
			for _, d := range Descriptors {
				attrs = append(attrs, slog.Float64(string(d), values[d]))
			}
			p.logger.InfoContext(ctx, "patch texture", attrs...)
		}
		out.Panels = append(out.Panels, raster.Panel{
			Name:   PanelFiltering,
			Title:  "Before / after Lee filtering",
			Window: p.opts.Patch,
			Left:   NameSigma0DB,
			Right:  NameLeeFiltered,
		})
	} else {
		p.logger.WarnContext(ctx, "texture patch outside the read window",
			slog.String("patch", p.opts.Patch.String()),
			slog.String("error", err.Error()),
		)
	}

	return out, nil
}

func withTitle(s raster.Style, title string) raster.Style {
	s.Title = title
	return s
}

// textureRange returns the display range of a descriptor.
func textureRange(d Descriptor, levels int) (float64, float64) {
	switch d {
	case Contrast:
		return 0, math.Max(1, float64((levels-1)*(levels-1))/16)
	case Dissimilarity:
		return 0, math.Max(1, float64(levels-1)/4)
	case Correlation:
		return -1, 1
	default:
		return 0, 1
	}
}
