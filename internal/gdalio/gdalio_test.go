package gdalio

import (
	"archive/zip"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkm/sentinel-pipeline/internal/raster"
)

func utmRef(t *testing.T) raster.GeoRef {
	t.Helper()
	Register()

	sr, err := godal.NewSpatialRefFromEPSG(32644)
	require.NoError(t, err)
	defer sr.Close()

	wkt, err := sr.WKT()
	require.NoError(t, err)

	return raster.GeoRef{
		Transform:  [6]float64{600000, 10, 0, 2000040, 0, -10},
		Projection: wkt,
	}
}

func sampleGrid(t *testing.T) *raster.Grid {
	g := raster.New(40, 30, utmRef(t))
	for i := range g.Data {
		g.Data[i] = float64(i%97) / 4
	}
	g.Set(3, 2, math.NaN())
	g.Set(12, 20, math.NaN())
	return g
}

func TestWriteAndRead(t *testing.T) {
	g := sampleGrid(t)
	path := filepath.Join(t.TempDir(), "band.tif")
	require.NoError(t, WriteGeoTIFF(path, g))

	r := NewReader()
	ctx := context.Background()

	info, err := r.Info(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 40, info.Width)
	assert.Equal(t, 30, info.Height)
	assert.Equal(t, 1, info.Bands)
	assert.Equal(t, g.GeoRef.Transform, info.GeoRef.Transform)
	assert.NotEmpty(t, info.GeoRef.Projection)
	assert.True(t, info.HasNoData)
	assert.True(t, math.IsNaN(info.NoData))

	win := raster.Window{X: 2, Y: 1, Width: 15, Height: 25}
	got, err := r.ReadWindow(ctx, path, win)
	require.NoError(t, err)
	assert.Equal(t, 15, got.Width)
	assert.Equal(t, 25, got.Height)
	assert.Equal(t, g.GeoRef.ForWindow(win).Transform, got.GeoRef.Transform)

	for y := 0; y < got.Height; y++ {
		for x := 0; x < got.Width; x++ {
			want := g.At(x+win.X, y+win.Y)
			v := got.At(x, y)
			if math.IsNaN(want) {
				assert.True(t, math.IsNaN(v), "(%d,%d) should be NaN", x, y)
				continue
			}
			assert.Equal(t, float64(float32(want)), v, "(%d,%d)", x, y)
		}
	}
}

func TestReadWindow_Strips(t *testing.T) {
	g := sampleGrid(t)
	path := filepath.Join(t.TempDir(), "band.tif")
	require.NoError(t, WriteGeoTIFF(path, g))

	whole, err := NewReader().ReadWindow(context.Background(), path, raster.Square(0, 0, 4000))
	require.NoError(t, err)

	// untiled output so the strip height is not raised to a 256 row block
	Register()
	plain := filepath.Join(t.TempDir(), "plain.tif")
	ds, err := godal.Create(godal.GTiff, plain, 1, godal.Float64, g.Width, g.Height)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform(g.GeoRef.Transform))
	require.NoError(t, ds.Bands()[0].Write(0, 0, whole.Data, g.Width, g.Height))
	require.NoError(t, ds.Close())

	strips, err := NewReader().WithStripRows(1).ReadWindow(context.Background(), plain, raster.Square(0, 0, 4000))
	require.NoError(t, err)
	require.Equal(t, whole.Width, strips.Width)
	require.Equal(t, whole.Height, strips.Height)
	for i := range whole.Data {
		if math.IsNaN(whole.Data[i]) {
			assert.True(t, math.IsNaN(strips.Data[i]))
			continue
		}
		assert.Equal(t, whole.Data[i], strips.Data[i], "sample %d", i)
	}
}

func TestReadWindow_NoDataBecomesNaN(t *testing.T) {
	Register()
	path := filepath.Join(t.TempDir(), "dn.tif")

	ds, err := godal.Create(godal.GTiff, path, 1, godal.UInt16, 4, 2)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform([6]float64{0, 1, 0, 0, 0, -1}))
	band := ds.Bands()[0]
	require.NoError(t, band.SetNoData(0))
	require.NoError(t, band.Write(0, 0, []uint16{0, 120, 340, 0, 5, 6, 7, 8}, 4, 2))
	require.NoError(t, ds.Close())

	g, err := NewReader().ReadWindow(context.Background(), path, raster.Square(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, g.CountNaN())
	assert.True(t, math.IsNaN(g.At(0, 0)))
	assert.Equal(t, 120.0, g.At(1, 0))
}

func TestReadWindow_VSIZip(t *testing.T) {
	g := sampleGrid(t)
	dir := t.TempDir()
	tif := filepath.Join(dir, "band.tif")
	require.NoError(t, WriteGeoTIFF(tif, g))

	archive := filepath.Join(dir, "product.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("S1A_TEST.SAFE/measurement/s1a-iw-grd-vh-001.tiff")
	require.NoError(t, err)
	src, err := os.Open(tif)
	require.NoError(t, err)
	_, err = io.Copy(w, src)
	require.NoError(t, err)
	require.NoError(t, src.Close())
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	got, err := NewReader().ReadWindow(context.Background(),
		"/vsizip/"+archive+"/S1A_TEST.SAFE/measurement/s1a-iw-grd-vh-001.tiff", raster.Square(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, got.Width)
	assert.Equal(t, float64(float32(g.At(4, 4))), got.At(4, 4))
}

func TestReadWindow_Errors(t *testing.T) {
	r := NewReader()

	_, err := r.ReadWindow(context.Background(), filepath.Join(t.TempDir(), "missing.tif"), raster.Square(0, 0, 5))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "band.tif")
	require.NoError(t, WriteGeoTIFF(path, sampleGrid(t)))

	_, err = r.ReadWindow(context.Background(), path, raster.Square(100, 100, 5))
	assert.ErrorIs(t, err, raster.ErrEmptyWindow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.ReadWindow(ctx, path, raster.Square(0, 0, 5))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFootprint(t *testing.T) {
	poly, err := Footprint(utmRef(t), 1000, 1000)
	require.NoError(t, err)
	require.Len(t, poly, 1)
	require.Len(t, poly[0], 5)

	// 10 km square east of the zone 44N central meridian
	b := poly.Bound()
	assert.True(t, b.Min[0] > 81 && b.Max[0] < 83, "longitude range %v", b)
	assert.True(t, b.Min[1] > 17.5 && b.Max[1] < 18.5, "latitude range %v", b)
	assert.InDelta(t, 0.09, b.Max[1]-b.Min[1], 0.01)
}

func TestFootprint_Geographic(t *testing.T) {
	ref := raster.GeoRef{Transform: [6]float64{78.0, 0.01, 0, 18.0, 0, -0.01}}
	poly, err := Footprint(ref, 100, 50)
	require.NoError(t, err)

	b := poly.Bound()
	assert.InDelta(t, 78.0, b.Min[0], 1e-9)
	assert.InDelta(t, 79.0, b.Max[0], 1e-9)
	assert.InDelta(t, 17.5, b.Min[1], 1e-9)
	assert.InDelta(t, 18.0, b.Max[1], 1e-9)

	_, err = Footprint(ref, 0, 10)
	assert.Error(t, err)
}
