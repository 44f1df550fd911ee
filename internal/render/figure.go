package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/rkm/sentinel-pipeline/internal/raster"
)

// Figure layout in pixels.
const (
	margin      = 10
	titleHeight = 24
	gap         = 12
	barWidth    = 18
	labelWidth  = 64
	minPanel    = 256
)

var (
	background = color.RGBA{255, 255, 255, 255}
	foreground = color.RGBA{0, 0, 0, 255}
	face       = basicfont.Face7x13
)

// Image colours every sample of g with the style's colormap. When the style
// has no range the range of the valid samples is used.
func Image(g *raster.Grid, style raster.Style) (*image.RGBA, error) {
	cm, err := Lookup(style.Colormap)
	if err != nil {
		return nil, err
	}
	lo, hi := limits(g, style)

	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			img.SetRGBA(x, y, cm.At(Normalize(g.At(x, y), lo, hi)))
		}
	}
	return img, nil
}

func limits(g *raster.Grid, style raster.Style) (float64, float64) {
	if style.Min < style.Max {
		return style.Min, style.Max
	}
	s, err := raster.Summarize(g)
	if err != nil {
		return 0, 1
	}
	return s.Min, s.Max
}

// Renderer writes PNG figures of derived rasters.
type Renderer struct {
	downscale int
	logger    *slog.Logger
}

// NewRenderer creates a renderer that keeps every downscale-th sample.
func NewRenderer(downscale int) *Renderer {
	if downscale < 1 {
		downscale = 1
	}
	return &Renderer{
		downscale: downscale,
		logger:    slog.Default(),
	}
}

// WithLogger sets a custom logger for the renderer.
func (r *Renderer) WithLogger(logger *slog.Logger) *Renderer {
	r.logger = logger
	return r
}

// Raster renders d with a title and a colorbar to path.
func (r *Renderer) Raster(path string, d *raster.Derived) error {
	g := d.Grid.Downsample(r.downscale)
	img, err := Image(g, d.Style)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", d.Name, err)
	}
	lo, hi := limits(g, d.Style)

	title := d.Style.Title
	if title == "" {
		title = d.Name
	}

	plotH := max(img.Bounds().Dy(), 64)
	fig := canvas(
		margin+img.Bounds().Dx()+gap+barWidth+labelWidth+margin,
		titleHeight+plotH+2*margin,
	)
	drawText(fig, title, margin, titleHeight-6)

	top := titleHeight + margin
	draw.Draw(fig, img.Bounds().Add(image.Pt(margin, top)), img, image.Point{}, draw.Src)
	drawColorbar(fig, d.Style, lo, hi, image.Rect(
		margin+img.Bounds().Dx()+gap, top,
		margin+img.Bounds().Dx()+gap+barWidth, top+plotH,
	))

	r.logger.Debug("rendering raster",
		slog.String("name", d.Name),
		slog.String("path", path),
		slog.Int("width", img.Bounds().Dx()),
		slog.Int("height", img.Bounds().Dy()),
	)
	return writePNG(path, fig)
}

// Panel renders the window of p from left and right side by side, sharing
// the colour scale of left.
func (r *Renderer) Panel(path string, p raster.Panel, left, right *raster.Derived) error {
	if left == nil || right == nil {
		return fmt.Errorf("panel %s: missing raster", p.Name)
	}

	a, err := left.Grid.Region(p.Window)
	if err != nil {
		return fmt.Errorf("panel %s: %w", p.Name, err)
	}
	b, err := right.Grid.Region(p.Window)
	if err != nil {
		return fmt.Errorf("panel %s: %w", p.Name, err)
	}

	lo, hi := limits(a, left.Style)
	style := left.Style
	style.Min, style.Max = lo, hi

	imgA, err := Image(a, style)
	if err != nil {
		return fmt.Errorf("panel %s: %w", p.Name, err)
	}
	imgB, err := Image(b, style)
	if err != nil {
		return fmt.Errorf("panel %s: %w", p.Name, err)
	}

	scale := 1
	if side := max(a.Width, a.Height); side < minPanel {
		scale = (minPanel + side - 1) / side
	}
	w, h := a.Width*scale, a.Height*scale

	fig := canvas(
		margin+w+gap+w+gap+barWidth+labelWidth+margin,
		2*titleHeight+h+2*margin,
	)
	drawText(fig, p.Title, margin, titleHeight-6)

	top := 2*titleHeight + margin
	for i, part := range []struct {
		img   *image.RGBA
		title string
	}{{imgA, titleOf(left)}, {imgB, titleOf(right)}} {
		x := margin + i*(w+gap)
		drawText(fig, part.title, x, 2*titleHeight-6)
		draw.NearestNeighbor.Scale(fig, image.Rect(x, top, x+w, top+h), part.img, part.img.Bounds(), draw.Src, nil)
	}

	barX := margin + 2*(w+gap)
	drawColorbar(fig, style, lo, hi, image.Rect(barX, top, barX+barWidth, top+h))

	r.logger.Debug("rendering panel",
		slog.String("name", p.Name),
		slog.String("path", path),
		slog.String("window", p.Window.String()),
	)
	return writePNG(path, fig)
}

func titleOf(d *raster.Derived) string {
	if d.Style.Title != "" {
		return d.Style.Title
	}
	return d.Name
}

func canvas(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	return img
}

// drawColorbar draws a vertical colour scale in rect with max at the top.
func drawColorbar(img *image.RGBA, style raster.Style, lo, hi float64, rect image.Rectangle) {
	cm, err := Lookup(style.Colormap)
	if err != nil {
		return
	}

	h := rect.Dy()
	for y := 0; y < h; y++ {
		t := 1 - float64(y)/float64(max(h-1, 1))
		c := cm.At(t)
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, rect.Min.Y+y, c)
		}
	}

	labelX := rect.Max.X + 4
	drawText(img, formatValue(hi), labelX, rect.Min.Y+10)
	drawText(img, formatValue(lo), labelX, rect.Max.Y)
	if style.Label != "" {
		drawText(img, style.Label, labelX, rect.Min.Y+h/2+4)
	}
}

func formatValue(v float64) string {
	if math.Abs(v) >= 1000 || (v != 0 && math.Abs(v) < 0.01) {
		return fmt.Sprintf("%.2e", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func drawText(img *image.RGBA, s string, x, y int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(foreground),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func writePNG(path string, img image.Image) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}
