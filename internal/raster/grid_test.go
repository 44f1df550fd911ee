package raster

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var utm = GeoRef{
	Transform:  [6]float64{600000, 10, 0, 2000040, 0, -10},
	Projection: "EPSG:32644",
}

func TestGeoRef_ForWindow(t *testing.T) {
	got := utm.ForWindow(Window{X: 100, Y: 50, Width: 10, Height: 10})

	want := [6]float64{601000, 10, 0, 1999540, 0, -10}
	if got.Transform != want {
		t.Errorf("ForWindow() = %v, want %v", got.Transform, want)
	}
	if got.Projection != utm.Projection {
		t.Errorf("ForWindow() dropped projection")
	}
}

func TestGeoRef_Scaled(t *testing.T) {
	got := utm.Scaled(2, 2)

	sx, sy := got.PixelSize()
	assert.Equal(t, 20.0, sx)
	assert.Equal(t, 20.0, sy)
	assert.Equal(t, utm.Transform[0], got.Transform[0])
	assert.False(t, SameGeoRef(utm, got))
	assert.True(t, SameGeoRef(utm, utm.Scaled(1, 1)))
}

func TestWindow_Clip(t *testing.T) {
	tests := []struct {
		name    string
		in      Window
		want    Window
		wantErr bool
	}{
		{"inside", Square(1, 1, 2), Square(1, 1, 2), false},
		{"larger than raster", Square(0, 0, 4000), Window{0, 0, 10, 8}, false},
		{"negative origin", Window{-2, -2, 5, 5}, Window{0, 0, 3, 3}, false},
		{"outside", Square(20, 20, 5), Window{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Clip(10, 8)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrEmptyWindow))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWindow_Shrink(t *testing.T) {
	assert.Equal(t, Window{X: 500, Y: 0, Width: 2000, Height: 2000}, Window{X: 1000, Y: 0, Width: 4000, Height: 4000}.Shrink(2))
	assert.Equal(t, Window{X: 0, Y: 0, Width: 3, Height: 3}, Square(0, 0, 5).Shrink(2))

	odd := Window{X: 1, Y: 3, Width: 4, Height: 4}
	assert.Equal(t, Window{X: 0, Y: 1, Width: 3, Height: 3}, odd.Shrink(2))
	px, py := odd.Phase(2)
	assert.Equal(t, 1, px)
	assert.Equal(t, 1, py)

	px, py = Square(1000, 0, 10).Phase(2)
	assert.Equal(t, 0, px)
	assert.Equal(t, 0, py)
}

func TestGrid_Region(t *testing.T) {
	g, err := FromRows([][]float64{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{9, 10, 11, 12},
	}, utm)
	require.NoError(t, err)

	r, err := g.Region(Window{X: 1, Y: 1, Width: 2, Height: 5})
	require.NoError(t, err)

	if diff := cmp.Diff([]float64{6, 7, 10, 11}, r.Data); diff != "" {
		t.Errorf("Region() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 600010.0, r.GeoRef.Transform[0])
	assert.Equal(t, 2000030.0, r.GeoRef.Transform[3])
}

func TestGrid_Downsample(t *testing.T) {
	g := New(5, 5, utm)
	for i := range g.Data {
		g.Data[i] = float64(i)
	}

	d := g.Downsample(2)
	assert.Equal(t, 3, d.Width)
	assert.Equal(t, 3, d.Height)
	if diff := cmp.Diff([]float64{0, 2, 4, 10, 12, 14, 20, 22, 24}, d.Data); diff != "" {
		t.Errorf("Downsample() mismatch (-want +got):\n%s", diff)
	}

	same := g.Downsample(1)
	assert.Equal(t, g.Data, same.Data)
}

func TestGrid_Upsample(t *testing.T) {
	scl, err := FromRows([][]float64{
		{4, 9},
		{3, 8},
	}, utm.Scaled(2, 2))
	require.NoError(t, err)

	up := scl.Upsample(2, 0, 0, 4, 4)
	want := []float64{
		4, 4, 9, 9,
		4, 4, 9, 9,
		3, 3, 8, 8,
		3, 3, 8, 8,
	}
	if diff := cmp.Diff(want, up.Data); diff != "" {
		t.Errorf("Upsample() mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, SameGeoRef(utm, up.GeoRef))

	// window starting one fine pixel into the first coarse pixel
	shifted := scl.Upsample(2, 1, 0, 3, 4)
	want = []float64{
		4, 9, 9,
		4, 9, 9,
		3, 8, 8,
		3, 8, 8,
	}
	if diff := cmp.Diff(want, shifted.Data); diff != "" {
		t.Errorf("Upsample() with phase mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, SameGeoRef(utm.ForWindow(Window{X: 1}), shifted.GeoRef))
}

func TestSummarize(t *testing.T) {
	g, err := FromRows([][]float64{{1, 2, math.NaN()}, {3, 4, math.NaN()}}, utm)
	require.NoError(t, err)

	s, err := Summarize(g)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.Equal(t, 2.5, s.Mean)
	assert.Equal(t, 4, s.Valid)
	assert.Equal(t, 2, s.Invalid)

	_, err = Summarize(NewFilled(2, 2, utm, math.NaN()))
	assert.Error(t, err)
}

func TestCheckCoRegistered(t *testing.T) {
	src := New(4, 4, utm)

	ok := &Derived{Name: "ok", Grid: src.Map(func(v float64) float64 { return v + 1 })}
	require.NoError(t, CheckCoRegistered(src, ok))

	shifted := &Derived{Name: "shifted", Grid: New(4, 4, utm.ForWindow(Square(1, 0, 4)))}
	assert.Error(t, CheckCoRegistered(src, shifted))

	smaller := &Derived{Name: "smaller", Grid: New(3, 4, utm)}
	assert.Error(t, CheckCoRegistered(src, smaller))
}
