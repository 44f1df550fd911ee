//go:build gocv

package sar

import (
	"fmt"
	"image"
	"image/color"
	"unsafe"

	"gocv.io/x/gocv"
)

// boxMean returns the size x size moving average of a width x height
// row-major buffer using OpenCV. Borders are mirrored about the edge
// (d c b a | a b c d).
func boxMean(src []float64, width, height, size int) ([]float64, error) {
	if err := checkBox(src, width, height, size); err != nil {
		return nil, err
	}
	half := size / 2

	buf := unsafe.Slice((*byte)(unsafe.Pointer(&src[0])), len(src)*8)
	in, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV64F, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap buffer: %w", err)
	}
	defer in.Close()

	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(in, &padded, half, half, half, half, gocv.BorderReflect, color.RGBA{})

	smoothed := gocv.NewMat()
	defer smoothed.Close()
	gocv.BoxFilter(padded, &smoothed, -1, image.Pt(size, size))

	region := smoothed.Region(image.Rect(half, half, half+width, half+height))
	defer region.Close()
	inner := region.Clone()
	defer inner.Close()

	data, err := inner.DataPtrFloat64()
	if err != nil {
		return nil, fmt.Errorf("failed to read filtered buffer: %w", err)
	}
	out := make([]float64, len(src))
	copy(out, data)
	return out, nil
}
