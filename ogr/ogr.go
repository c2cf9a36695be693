// Package ogr reads vector layers from any dataset supported by GDAL/OGR.
//
// The category of each feature is read from an integer attribute field, "cat"
// by default, which is the field GRASS uses when exporting vector maps.
// Drivers must have been registered beforehand, e.g. with
// godal.RegisterAll().
package ogr

import (
	"context"
	"fmt"

	"github.com/airbusgeo/gdalgrid"
	"github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// Source is a layer of an OGR dataset
type Source struct {
	dataset  string
	layer    string
	catField string
	logger   *zap.Logger
}

type Option func(s *Source)

// Layer selects the layer by name. The first layer of the dataset is used by default
func Layer(name string) Option {
	return func(s *Source) {
		s.layer = name
	}
}

// CatField sets the name of the integer attribute holding the category
func CatField(name string) Option {
	return func(s *Source) {
		s.catField = name
	}
}

func Logger(l *zap.Logger) Option {
	return func(s *Source) {
		s.logger = l
	}
}

func New(dataset string, options ...Option) *Source {
	s := &Source{
		dataset:  dataset,
		catField: "cat",
		logger:   zap.NewNop(),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

var _ gdalgrid.Source = (*Source)(nil)

// handle is an opened dataset along with the selected layer
type handle struct {
	ds    *godal.Dataset
	layer godal.Layer
}

func (s *Source) open() (*handle, error) {
	ds, err := godal.Open(s.dataset, godal.VectorOnly())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.dataset, err)
	}
	layers := ds.Layers()
	if len(layers) == 0 {
		ds.Close() //nolint:errcheck
		return nil, fmt.Errorf("%s has no layers", s.dataset)
	}
	if s.layer == "" {
		return &handle{ds: ds, layer: layers[0]}, nil
	}
	for _, l := range layers {
		if l.Name() == s.layer {
			return &handle{ds: ds, layer: l}, nil
		}
	}
	ds.Close() //nolint:errcheck
	return nil, fmt.Errorf("%s: layer %s not found", s.dataset, s.layer)
}

func (h *handle) Close() error {
	return h.ds.Close()
}

// scan calls fn for each feature of the layer. Features without a category
// field are an error.
func (s *Source) scan(ctx context.Context, h *handle, fn func(cat int, geom *godal.Geometry) error) error {
	h.layer.ResetReading()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		feat := h.layer.NextFeature()
		if feat == nil {
			return nil
		}
		fld, ok := feat.Fields()[s.catField]
		if !ok {
			feat.Close()
			return fmt.Errorf("%s: no %s field", s.dataset, s.catField)
		}
		cat := int(fld.Int())
		geom := feat.Geometry()
		err := fn(cat, geom)
		geom.Close()
		feat.Close()
		if err != nil {
			return err
		}
	}
}

func (s *Source) Categories(ctx context.Context) (gdalgrid.CategoryRange, error) {
	h, err := s.open()
	if err != nil {
		return gdalgrid.CategoryRange{}, err
	}
	defer h.Close() //nolint:errcheck

	var rng gdalgrid.CategoryRange
	n := 0
	err = s.scan(ctx, h, func(cat int, _ *godal.Geometry) error {
		if n == 0 || cat < rng.Min {
			rng.Min = cat
		}
		if n == 0 || cat > rng.Max {
			rng.Max = cat
		}
		n++
		return nil
	})
	if err != nil {
		return gdalgrid.CategoryRange{}, err
	}
	if n == 0 {
		return gdalgrid.CategoryRange{}, fmt.Errorf("%s: %w: layer has no features", s.dataset, gdalgrid.ErrCategoryReport)
	}
	s.logger.Debug("categories", zap.String("dataset", s.dataset), zap.Int("features", n),
		zap.Int("min", rng.Min), zap.Int("max", rng.Max))
	return rng, nil
}

func (s *Source) Extent(ctx context.Context) (gdalgrid.BBox, error) {
	h, err := s.open()
	if err != nil {
		return gdalgrid.BBox{}, err
	}
	defer h.Close() //nolint:errcheck
	b, err := h.layer.Bounds()
	if err != nil {
		return gdalgrid.BBox{}, fmt.Errorf("bounds of %s: %w", s.dataset, err)
	}
	return gdalgrid.BBoxFromBounds(b), nil
}

// Open reads the bounding boxes of all the layer's geometries in one pass.
// Boxes of features sharing a category are unioned. Features with a null or
// empty geometry have no box and are left out.
func (s *Source) Open(ctx context.Context) (gdalgrid.Layer, error) {
	h, err := s.open()
	if err != nil {
		return nil, err
	}
	defer h.Close() //nolint:errcheck

	boxes := map[int]gdalgrid.BBox{}
	err = s.scan(ctx, h, func(cat int, geom *godal.Geometry) error {
		if geom.Empty() {
			return nil
		}
		bounds, err := geom.Bounds()
		if err != nil {
			return fmt.Errorf("bounds of cat %d: %w", cat, err)
		}
		b := gdalgrid.BBoxFromBounds(bounds)
		if prev, ok := boxes[cat]; ok {
			b = prev.Union(b)
		}
		boxes[cat] = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return layer{dataset: s.dataset, boxes: boxes}, nil
}

type layer struct {
	dataset string
	boxes   map[int]gdalgrid.BBox
}

func (l layer) BBox(_ context.Context, id int) (gdalgrid.BBox, error) {
	b, ok := l.boxes[id]
	if !ok {
		return gdalgrid.BBox{}, fmt.Errorf("%s: %w %d", l.dataset, gdalgrid.ErrMissingCategory, id)
	}
	return b, nil
}

func (l layer) Close() error {
	return nil
}
