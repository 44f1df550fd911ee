//go:build !gocv

package sar

// boxMean returns the size x size moving average of a width x height
// row-major buffer. Borders are mirrored about the edge (d c b a | a b c d).
func boxMean(src []float64, width, height, size int) ([]float64, error) {
	if err := checkBox(src, width, height, size); err != nil {
		return nil, err
	}
	half := size / 2
	inv := 1 / float64(size)

	// horizontal pass
	tmp := make([]float64, len(src))
	for y := 0; y < height; y++ {
		row := src[y*width : (y+1)*width]
		var sum float64
		for k := -half; k <= half; k++ {
			sum += row[mirror(k, width)]
		}
		tmp[y*width] = sum * inv
		for x := 1; x < width; x++ {
			sum += row[mirror(x+half, width)] - row[mirror(x-half-1, width)]
			tmp[y*width+x] = sum * inv
		}
	}

	// vertical pass
	out := make([]float64, len(src))
	for x := 0; x < width; x++ {
		var sum float64
		for k := -half; k <= half; k++ {
			sum += tmp[mirror(k, height)*width+x]
		}
		out[x] = sum * inv
		for y := 1; y < height; y++ {
			sum += tmp[mirror(y+half, height)*width+x] - tmp[mirror(y-half-1, height)*width+x]
			out[y*width+x] = sum * inv
		}
	}
	return out, nil
}

func mirror(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}
