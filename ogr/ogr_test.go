package ogr

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/airbusgeo/gdalgrid"
	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	godal.RegisterAll()
	os.Exit(m.Run())
}

const grid = `{
"type": "FeatureCollection",
"features": [
{"type":"Feature","properties":{"cat":1,"name":"a"},"geometry":{"type":"Polygon","coordinates":[[[0.5,0.5],[10.9,0.5],[10.9,10.9],[0.5,10.9],[0.5,0.5]]]}},
{"type":"Feature","properties":{"cat":2,"name":"b"},"geometry":{"type":"Polygon","coordinates":[[[-10.9,-5.7],[15.99,-5.7],[15.99,20.3],[-10.9,20.3],[-10.9,-5.7]]]}},
{"type":"Feature","properties":{"cat":3,"name":"c1"},"geometry":{"type":"Polygon","coordinates":[[[100,100],[101,100],[101,101],[100,101],[100,100]]]}},
{"type":"Feature","properties":{"cat":3,"name":"c2"},"geometry":{"type":"Polygon","coordinates":[[[102,99],[103,99],[103,100],[102,100],[102,99]]]}}
]
}`

func writeGrid(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.geojson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCategories(t *testing.T) {
	src := New(writeGrid(t, grid))
	rng, err := src.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gdalgrid.CategoryRange{Min: 1, Max: 3}, rng)

	_, err = New(writeGrid(t, grid), CatField("id")).Categories(context.Background())
	assert.Error(t, err)

	_, err = New(writeGrid(t, grid), Layer("nope")).Categories(context.Background())
	assert.Error(t, err)

	_, err = New(filepath.Join(t.TempDir(), "missing.gpkg")).Categories(context.Background())
	assert.Error(t, err)
}

func TestExtent(t *testing.T) {
	bbox, err := New(writeGrid(t, grid)).Extent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gdalgrid.BBox{North: 101, South: -5.7, East: 103, West: -10.9}, bbox)
}

func TestCommands(t *testing.T) {
	src := New(writeGrid(t, grid), Layer("grid"))
	rng, err := src.Categories(context.Background())
	require.NoError(t, err)
	g, err := gdalgrid.NewGrid()
	require.NoError(t, err)
	sb := strings.Builder{}
	n, err := g.WriteCommands(context.Background(), &sb, src, rng, "tile", "dem.tif")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t,
		"gdal_translate -projwin -1 11 11 -1 -co TILED=YES -co COMPRESS=LZW -co PREDICTOR=2 dem.tif tile_1_-1_11_11_-1.tif\n"+
			"gdal_translate -projwin -11 21 16 -6 -co TILED=YES -co COMPRESS=LZW -co PREDICTOR=2 dem.tif tile_2_-11_21_16_-6.tif\n"+
			"gdal_translate -projwin 99 102 104 98 -co TILED=YES -co COMPRESS=LZW -co PREDICTOR=2 dem.tif tile_3_99_102_104_98.tif\n",
		sb.String())
}

func TestMissingCategory(t *testing.T) {
	src := New(writeGrid(t, grid))
	err := gdalgrid.Walk(context.Background(), src, gdalgrid.CategoryRange{Min: 1, Max: 4}, func(int, gdalgrid.BBox) error {
		return nil
	})
	assert.ErrorIs(t, err, gdalgrid.ErrMissingCategory)
}

const sparse = `{
"type": "FeatureCollection",
"features": [
{"type":"Feature","properties":{"cat":1},"geometry":null},
{"type":"Feature","properties":{"cat":1},"geometry":{"type":"Polygon","coordinates":[[[2.5,2.5],[4.5,2.5],[4.5,6.5],[2.5,6.5],[2.5,2.5]]]}},
{"type":"Feature","properties":{"cat":2},"geometry":null}
]
}`

func TestNullGeometry(t *testing.T) {
	src := New(writeGrid(t, sparse))
	rng, err := src.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gdalgrid.CategoryRange{Min: 1, Max: 2}, rng)

	layer, err := src.Open(context.Background())
	require.NoError(t, err)
	defer layer.Close() //nolint:errcheck

	tests := []struct {
		cat     int
		bbox    gdalgrid.BBox
		missing bool
	}{
		{cat: 1, bbox: gdalgrid.BBox{North: 6.5, South: 2.5, East: 4.5, West: 2.5}},
		{cat: 2, missing: true},
	}
	for _, tt := range tests {
		b, err := layer.BBox(context.Background(), tt.cat)
		if tt.missing {
			assert.ErrorIs(t, err, gdalgrid.ErrMissingCategory, "cat %d", tt.cat)
			continue
		}
		require.NoError(t, err, "cat %d", tt.cat)
		assert.Equal(t, tt.bbox, b, "cat %d", tt.cat)
	}
}
