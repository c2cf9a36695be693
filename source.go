package gdalgrid

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrMissingCategory is returned when no geometry carries a requested category ID
var ErrMissingCategory = errors.New("no geometry for category")

// A Source gives read-only access to a vector layer.
type Source interface {
	// Categories returns the range of category IDs found in the layer
	Categories(ctx context.Context) (CategoryRange, error)
	// Extent returns the bounding box of the whole layer
	Extent(ctx context.Context) (BBox, error)
	// Open returns a handle used to query the bounding boxes of individual
	// geometries. The handle must be closed once done.
	Open(ctx context.Context) (Layer, error)
}

// A Layer is an open handle on a Source.
type Layer interface {
	// BBox returns the bounding box of the geometry with category id. It returns
	// an error wrapping ErrMissingCategory if there is no such geometry.
	BBox(ctx context.Context, id int) (BBox, error)
	Close() error
}

// ErrInvalidOption is returned for invalid Grid options or configurations
type ErrInvalidOption struct {
	msg string
}

func (err ErrInvalidOption) Error() string {
	return err.msg
}

func invalidOptionf(format string, args ...interface{}) error {
	return ErrInvalidOption{msg: fmt.Sprintf(format, args...)}
}

// A Grid walks the geometries of a vector Source in category order, and derives
// per-geometry extraction commands.
type Grid struct {
	skipMissing bool
	switches    []string
	logger      *zap.Logger
}

type Option func(g *Grid) error

// SkipMissing makes the Grid skip category IDs that have no geometry, logging
// a warning for each. By default such IDs abort the walk.
func SkipMissing() Option {
	return func(g *Grid) error {
		g.skipMissing = true
		return nil
	}
}

// Switches adds extra gdal_translate switches to each generated command. The
// switches are validated with CheckSwitches.
func Switches(switches ...string) Option {
	return func(g *Grid) error {
		if err := CheckSwitches(switches); err != nil {
			return err
		}
		g.switches = append(g.switches, switches...)
		return nil
	}
}

// Logger sets the logger used to report progress
func Logger(l *zap.Logger) Option {
	return func(g *Grid) error {
		if l == nil {
			return invalidOptionf("logger must not be nil")
		}
		g.logger = l
		return nil
	}
}

// NewGrid creates a Grid. Without options, missing categories are errors, no
// extra switches are added and nothing is logged.
func NewGrid(options ...Option) (Grid, error) {
	g := Grid{
		logger: zap.NewNop(),
	}
	for _, o := range options {
		if err := o(&g); err != nil {
			return g, err
		}
	}
	return g, nil
}

// Walk opens src and calls fn with the bounding box of every geometry whose
// category lies in [1,rng.Max], in ascending order. Each call to Walk reopens
// the source. Iteration stops at the first error returned by the source or by
// fn.
func (g Grid) Walk(ctx context.Context, src Source, rng CategoryRange, fn func(id int, bbox BBox) error) (err error) {
	layer, err := src.Open(ctx)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if cerr := layer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close source: %w", cerr)
		}
	}()

	for id := 1; id <= rng.Max; id++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		bbox, err := layer.BBox(ctx, id)
		if err != nil {
			if g.skipMissing && errors.Is(err, ErrMissingCategory) {
				g.logger.Warn("skipping category without geometry", zap.Int("cat", id))
				continue
			}
			return fmt.Errorf("bbox of cat %d: %w", id, err)
		}
		if err := fn(id, bbox); err != nil {
			return err
		}
	}
	return nil
}

// Walk calls fn for each geometry of src using a default Grid
func Walk(ctx context.Context, src Source, rng CategoryRange, fn func(id int, bbox BBox) error) error {
	g, _ := NewGrid()
	return g.Walk(ctx, src, rng, fn)
}
