package raster

import (
	"errors"
	"fmt"
)

// ErrEmptyWindow is returned when a window does not overlap the raster.
var ErrEmptyWindow = errors.New("window does not overlap raster")

// Window is a pixel rectangle in raster coordinates.
type Window struct {
	X, Y          int
	Width, Height int
}

// Square returns a size x size window at (x, y).
func Square(x, y, size int) Window {
	return Window{X: x, Y: y, Width: size, Height: size}
}

// Clip intersects w with a width x height raster.
func (w Window) Clip(width, height int) (Window, error) {
	x0, y0 := max(w.X, 0), max(w.Y, 0)
	x1, y1 := min(w.X+w.Width, width), min(w.Y+w.Height, height)
	if x1 <= x0 || y1 <= y0 {
		return Window{}, fmt.Errorf("%w: window %v on %dx%d raster", ErrEmptyWindow, w, width, height)
	}
	return Window{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, nil
}

// Shrink maps w onto a raster whose pixels are factor times larger,
// e.g. a 10 m window onto a 20 m band. The result covers every coarse
// pixel w touches, so an origin that is not a multiple of factor widens
// it by one.
func (w Window) Shrink(factor int) Window {
	if factor <= 1 {
		return w
	}
	x0, y0 := floorDiv(w.X, factor), floorDiv(w.Y, factor)
	x1 := floorDiv(w.X+w.Width+factor-1, factor)
	y1 := floorDiv(w.Y+w.Height+factor-1, factor)
	return Window{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Phase returns the offset of w's origin inside the coarse pixel that
// Shrink(factor) starts at.
func (w Window) Phase(factor int) (int, int) {
	if factor <= 1 {
		return 0, 0
	}
	return w.X - floorDiv(w.X, factor)*factor, w.Y - floorDiv(w.Y, factor)*factor
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// Pixels returns the number of samples covered by w.
func (w Window) Pixels() int {
	return w.Width * w.Height
}

func (w Window) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", w.X, w.Y, w.Width, w.Height)
}
