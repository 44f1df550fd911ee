package sar

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkm/sentinel-pipeline/internal/raster"
)

var utm = raster.GeoRef{
	Transform:  [6]float64{600000, 10, 0, 2000040, 0, -10},
	Projection: "EPSG:32644",
}

func TestLinearToDB(t *testing.T) {
	tests := []struct {
		in      float64
		want    float64
		wantErr bool
	}{
		{1, 0, false},
		{10, 10, false},
		{0.01, -20, false},
		{1e-10, -100, false},
		{0, 0, true},
		{-0.5, 0, true},
	}

	for _, tt := range tests {
		got, err := LinearToDB(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidData) {
				t.Errorf("LinearToDB(%g) error = %v, want ErrInvalidData", tt.in, err)
			}
			continue
		}
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-12, "LinearToDB(%g)", tt.in)
	}

	got, err := LinearToDB(math.NaN())
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))
}

func TestDBRoundTrip(t *testing.T) {
	for _, x := range []float64{1e-6, 0.003, 0.25, 1, 7.5, 1200} {
		db, err := LinearToDB(x)
		require.NoError(t, err)
		assert.InEpsilon(t, x, DBToLinear(db), 1e-12)
	}
}

func TestGridToDB(t *testing.T) {
	dn, err := raster.FromRows([][]float64{{0, 100}, {10000, 500}}, utm)
	require.NoError(t, err)

	_, err = GridToDB(ToLinear(dn, 10000))
	assert.True(t, errors.Is(err, ErrInvalidData))

	db, err := GridToDB(ClipFloor(ToLinear(dn, 10000), 1e-10))
	require.NoError(t, err)
	assert.InDelta(t, -100, db.At(0, 0), 1e-9)
	assert.InDelta(t, -20, db.At(1, 0), 1e-9)
	assert.InDelta(t, 0, db.At(0, 1), 1e-9)
}

func TestMaskRange(t *testing.T) {
	db, err := raster.FromRows([][]float64{{-100, -12}, {4, 9}}, utm)
	require.NoError(t, err)

	got, masked := MaskRange(db, -40, 5)
	assert.Equal(t, 2, masked)
	assert.True(t, math.IsNaN(got.At(0, 0)))
	assert.Equal(t, -12.0, got.At(1, 0))
	assert.Equal(t, 4.0, got.At(0, 1))
	assert.True(t, math.IsNaN(got.At(1, 1)))
}

func TestBoxMean(t *testing.T) {
	src := []float64{
		1, 2, 3,
		4, 5, 6,
	}
	same, err := boxMean(src, 3, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, src, same)

	constant := make([]float64, 20)
	for i := range constant {
		constant[i] = 3
	}
	smoothed, err := boxMean(constant, 5, 4, 3)
	require.NoError(t, err)
	for _, v := range smoothed {
		assert.InDelta(t, 3, v, 1e-12)
	}

	// mirrored borders: row 1 2 3 with size 3 -> (1+1+2)/3, 2, (2+3+3)/3
	got, err := boxMean([]float64{1, 2, 3}, 3, 1, 3)
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3, got[0], 1e-12)
	assert.InDelta(t, 2.0, got[1], 1e-12)
	assert.InDelta(t, 8.0/3, got[2], 1e-12)
}

func TestBoxMean_Errors(t *testing.T) {
	tests := []struct {
		name          string
		src           []float64
		width, height int
		size          int
	}{
		{"empty", nil, 0, 0, 3},
		{"short buffer", []float64{1, 2, 3}, 2, 2, 3},
		{"even size", []float64{1, 2, 3, 4}, 2, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := boxMean(tt.src, tt.width, tt.height, tt.size)
			assert.Error(t, err)
		})
	}

	_, err := LocalMean(&raster.Grid{Width: 2, Height: 2, Data: []float64{1}}, 3)
	assert.Error(t, err)
}

func TestLeeFilter_SuppressesOutlier(t *testing.T) {
	db, err := raster.FromRows([][]float64{
		{-12, -12, -12, -12},
		{-12, 3, -12, -12},
		{-12, -12, -12, -12},
		{-12, -12, -12, -12},
	}, utm)
	require.NoError(t, err)

	for _, size := range []int{3, 5} {
		filtered, err := LeeFilter(db, size, -40)
		require.NoError(t, err)
		require.True(t, filtered.SameShape(db))
		assert.Equal(t, db.GeoRef, filtered.GeoRef)

		local, err := LocalMean(db, size)
		require.NoError(t, err)
		mean := local.At(1, 1)
		before := math.Abs(db.At(1, 1) - mean)
		after := math.Abs(filtered.At(1, 1) - mean)
		if after >= before {
			t.Errorf("size %d: deviation after filtering = %g, want < %g", size, after, before)
		}
	}
}

func TestLeeFilter_KeepsNaN(t *testing.T) {
	db, err := raster.FromRows([][]float64{
		{-10, -11, math.NaN()},
		{-12, -10, -9},
		{-11, math.NaN(), -10},
	}, utm)
	require.NoError(t, err)

	filtered, err := LeeFilter(db, 3, -40)
	require.NoError(t, err)
	assert.Equal(t, 2, filtered.CountNaN())
	assert.True(t, math.IsNaN(filtered.At(2, 0)))
	assert.True(t, math.IsNaN(filtered.At(1, 2)))
	assert.False(t, math.IsNaN(filtered.At(1, 1)))
}

func TestLeeFilter_Constant(t *testing.T) {
	db := raster.NewFilled(6, 4, utm, -15)

	filtered, err := LeeFilter(db, 5, -40)
	require.NoError(t, err)
	for _, v := range filtered.Data {
		assert.InDelta(t, -15, v, 1e-9)
	}
}

func TestLeeFilter_InvalidSize(t *testing.T) {
	db := raster.NewFilled(4, 4, utm, -15)
	for _, size := range []int{0, 4, -3} {
		_, err := LeeFilter(db, size, -40)
		assert.Error(t, err, "size %d", size)
	}
}

func TestQuantize(t *testing.T) {
	g, err := raster.FromRows([][]float64{{-20, -10, math.NaN()}, {0, -15, -5}}, utm)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, -1, 4, 1, 3}, Quantize(g, 5))
	assert.Equal(t, []int{0, 0, 0, 0}, Quantize(raster.NewFilled(2, 2, utm, 7), 64))
}

func TestTexture_ConstantWindow(t *testing.T) {
	g := raster.NewFilled(9, 9, utm, -12)

	out, err := Texture(context.Background(), g, TextureOptions{Window: 5, Levels: 64, Distance: 1})
	require.NoError(t, err)

	for _, d := range Descriptors {
		require.True(t, out[d].SameShape(g), "%s shape", d)
	}
	for i := range g.Data {
		assert.Equal(t, 0.0, out[Contrast].Data[i])
		assert.Equal(t, 0.0, out[Dissimilarity].Data[i])
		assert.InDelta(t, 1.0, out[Homogeneity].Data[i], 1e-12)
		assert.InDelta(t, 1.0, out[Energy].Data[i], 1e-12)
		assert.Equal(t, 1.0, out[Correlation].Data[i])
	}
}

func TestTexture_Stripes(t *testing.T) {
	g := raster.New(8, 6, utm)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			g.Set(x, y, float64(x%2))
		}
	}

	values, err := PatchTexture(g, TextureOptions{Levels: 2, Distance: 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, values[Contrast], 1e-12)
	assert.InDelta(t, 1.0, values[Dissimilarity], 1e-12)
	assert.InDelta(t, 0.5, values[Homogeneity], 1e-12)
	assert.InDelta(t, -1.0, values[Correlation], 1e-12)
	assert.InDelta(t, math.Sqrt(0.5), values[Energy], 1e-12)
}

func TestTexture_MatchesDirectComputation(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	g := raster.New(23, 17, utm)
	for i := range g.Data {
		g.Data[i] = -25 + 20*rng.Float64()
		if rng.IntN(10) == 0 {
			g.Data[i] = math.NaN()
		}
	}

	opts := TextureOptions{Window: 5, Levels: 16, Distance: 2}
	out, err := Texture(context.Background(), g, opts)
	require.NoError(t, err)

	q := Quantize(g, opts.Levels)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			i := y*g.Width + x
			if q[i] < 0 {
				for _, d := range Descriptors {
					assert.True(t, math.IsNaN(out[d].Data[i]), "%s at (%d,%d) should be NaN", d, x, y)
				}
				continue
			}
			want := directTexture(q, g.Width, g.Height, x, y, opts)
			for _, d := range Descriptors {
				got := out[d].Data[i]
				if math.IsNaN(want[d]) {
					assert.True(t, math.IsNaN(got), "%s at (%d,%d)", d, x, y)
					continue
				}
				assert.InDelta(t, want[d], got, 1e-9, "%s at (%d,%d)", d, x, y)
			}
		}
	}
}

func TestTexture_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Texture(ctx, raster.New(4, 4, utm), TextureOptions{Window: 3, Levels: 8, Distance: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

// directTexture builds the symmetric matrix for one neighbourhood and
// evaluates the descriptors from their definitions.
func directTexture(q []int, width, height, x, y int, opts TextureOptions) Values {
	L := opts.Levels
	p := make([]float64, L*L)
	half := opts.Window / 2

	var total float64
	for r := max(y-half, 0); r <= min(y+half, height-1); r++ {
		for c := max(x-half, 0); c+opts.Distance <= min(x+half, width-1); c++ {
			a, b := q[r*width+c], q[r*width+c+opts.Distance]
			if a < 0 || b < 0 {
				continue
			}
			p[a*L+b]++
			p[b*L+a]++
			total += 2
		}
	}

	nan := math.NaN()
	if total == 0 {
		return Values{Contrast: nan, Dissimilarity: nan, Homogeneity: nan, Energy: nan, Correlation: nan}
	}

	v := Values{}
	var asm, mu float64
	for i := 0; i < L; i++ {
		for j := 0; j < L; j++ {
			pij := p[i*L+j] / total
			d := float64(i - j)
			v[Contrast] += pij * d * d
			v[Dissimilarity] += pij * math.Abs(d)
			v[Homogeneity] += pij / (1 + d*d)
			asm += pij * pij
			mu += pij * float64(i)
		}
	}
	v[Energy] = math.Sqrt(asm)

	var variance, cov float64
	for i := 0; i < L; i++ {
		for j := 0; j < L; j++ {
			pij := p[i*L+j] / total
			variance += pij * (float64(i) - mu) * (float64(i) - mu)
			cov += pij * (float64(i) - mu) * (float64(j) - mu)
		}
	}
	v[Correlation] = 1
	if variance > 1e-12 {
		v[Correlation] = cov / variance
	}
	return v
}
