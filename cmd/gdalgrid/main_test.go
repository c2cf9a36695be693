package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/airbusgeo/gdalgrid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	max   int
	input string
}

func (f *fakeSource) Categories(context.Context) (gdalgrid.CategoryRange, error) {
	return gdalgrid.CategoryRange{Min: 1, Max: f.max}, nil
}

func (f *fakeSource) Extent(context.Context) (gdalgrid.BBox, error) {
	return gdalgrid.BBox{North: 228500, South: 215000, East: 645000, West: 630000}, nil
}

func (f *fakeSource) Open(context.Context) (gdalgrid.Layer, error) {
	return fakeLayer{}, nil
}

type fakeLayer struct{}

func (fakeLayer) BBox(_ context.Context, id int) (gdalgrid.BBox, error) {
	f := float64(id)
	return gdalgrid.BBox{North: f + 0.5, South: f - 0.5, East: f + 0.5, West: f - 0.5}, nil
}

func (fakeLayer) Close() error { return nil }

var inGRASS = gdalgrid.Env{GISBase: "/usr/lib/grass78"}

func run(t *testing.T, env gdalgrid.Env, src *fakeSource, args ...string) (string, error) {
	t.Helper()
	cmd := newGridCommand(env, func(cfg gdalgrid.Config, _ *zap.Logger) gdalgrid.Source {
		src.input = cfg.VectorName()
		return src
	})
	out := bytes.Buffer{}
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPrintCategories(t *testing.T) {
	src := &fakeSource{max: 50}
	out, err := run(t, inGRASS, src, "input=grid@PERMANENT", "-c")
	require.NoError(t, err)
	assert.Equal(t, "min cat: 1 max cat: 50\n", out)
	assert.Equal(t, "grid", src.input)
}

func TestPrintBBoxes(t *testing.T) {
	out, err := run(t, inGRASS, &fakeSource{max: 2}, "--input", "grid", "-bt")
	require.NoError(t, err)
	assert.Equal(t, "north: 228500 south: 215000 west: 630000 east: 645000\n"+
		"cat 1: north: 1.5 south: 0.5 west: 0.5 east: 1.5\n"+
		"cat 2: north: 2.5 south: 1.5 west: 1.5 east: 2.5\n", out)
}

func TestExportCommands(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, inGRASS, &fakeSource{max: 3}, "input=grid", "-s", "dir="+dir,
		"prefix=tile", "raster=dem.tif", "file=cmds.txt")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(filepath.Join(dir, "cmds.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	for i, l := range lines {
		id := i + 1
		assert.Equal(t, fmt.Sprintf("gdal_translate -projwin %d %d %d %d -co TILED=YES -co COMPRESS=LZW -co PREDICTOR=2 dem.tif tile_%d_%d_%d_%d_%d.tif",
			id-2, id+1, id+1, id-2, id, id-2, id+1, id+1, id-2), l)
	}
}

func TestExportSwitches(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, inGRASS, &fakeSource{max: 1}, "--input=grid", "-s", "--dir", dir,
		"--prefix=t", "--raster=dem.tif", "--file=cmds.txt", `switches=-b 1 -a_nodata 0`)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "cmds.txt"))
	require.NoError(t, err)
	assert.Equal(t, "gdal_translate -projwin -1 2 2 -1 -co TILED=YES -co COMPRESS=LZW -co PREDICTOR=2 -b 1 -a_nodata 0 dem.tif t_1_-1_2_2_-1.tif\n", string(data))

	_, err = run(t, inGRASS, &fakeSource{max: 1}, "--input=grid", "-s", "--dir", dir,
		"--prefix=t", "--raster=dem.tif", "--file=cmds.txt", "--switches=-projwin 0 0 1 1")
	assert.Error(t, err)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "grid.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
input: fromfile
s: true
dir: %s
prefix: tile
raster: dem.tif
file: cmds.txt
`, dir)), 0o644))

	src := &fakeSource{max: 2}
	_, err := run(t, inGRASS, src, "--config", cfgPath, "input=fromargs", "prefix=other")
	require.NoError(t, err)
	assert.Equal(t, "fromargs", src.input)
	data, err := os.ReadFile(filepath.Join(dir, "cmds.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "other_2_")

	require.NoError(t, os.WriteFile(cfgPath, []byte("unknown: 1\n"), 0o644))
	_, err = run(t, inGRASS, src, "--config", cfgPath, "input=grid", "-c")
	assert.Error(t, err)
}

func TestErrors(t *testing.T) {
	_, err := run(t, gdalgrid.Env{}, &fakeSource{max: 1}, "input=grid", "-c")
	assert.ErrorIs(t, err, gdalgrid.ErrNotInGRASS)

	_, err = run(t, gdalgrid.Env{}, &fakeSource{max: 1}, "input=grid.gpkg", "backend=ogr", "-c")
	assert.NoError(t, err)

	for _, args := range [][]string{
		{"-c"},
		{"input=grid", "bogus=1"},
		{"input=grid", "grid"},
		{"input=grid", "-s", "prefix=1tile", "raster=dem.tif", "file=cmds.txt"},
		{"input=grid", "-s", "prefix=tile", "file=cmds.txt"},
		{"input=grid", "layer=x"},
	} {
		_, err := run(t, inGRASS, &fakeSource{max: 1}, args...)
		assert.Error(t, err, "%v", args)
	}
}
