// Package grass reads GRASS GIS vector maps by running GRASS modules. It must
// be used from within a GRASS session, i.e. with the GRASS modules in the PATH
// and a current location/mapset.
package grass

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/airbusgeo/gdalgrid"
	"github.com/alessio/shellescape"
	"go.uber.org/zap"
)

// A Runner executes a GRASS module and returns its standard output
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs modules as subprocesses
type ExecRunner struct {
	Logger *zap.Logger
}

func (r ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmdline := shellescape.QuoteCommand(append([]string{name}, args...))
	if r.Logger != nil {
		r.Logger.Debug("run", zap.String("command", cmdline))
	}
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := bytes.Buffer{}
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", cmdline, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", cmdline, err)
	}
	return out, nil
}

// Source is a GRASS vector map
type Source struct {
	vector string
	layer  int
	runner Runner
	logger *zap.Logger
}

type Option func(s *Source)

// Layer sets the category layer, 1 by default
func Layer(layer int) Option {
	return func(s *Source) {
		s.layer = layer
	}
}

// WithRunner replaces the subprocess runner
func WithRunner(r Runner) Option {
	return func(s *Source) {
		s.runner = r
	}
}

func Logger(l *zap.Logger) Option {
	return func(s *Source) {
		s.logger = l
	}
}

// New returns a Source for the given vector map name (without @mapset)
func New(vector string, options ...Option) *Source {
	s := &Source{
		vector: vector,
		layer:  1,
		logger: zap.NewNop(),
	}
	for _, o := range options {
		o(s)
	}
	if s.runner == nil {
		s.runner = ExecRunner{Logger: s.logger}
	}
	return s
}

var _ gdalgrid.Source = (*Source)(nil)

func (s *Source) Categories(ctx context.Context) (gdalgrid.CategoryRange, error) {
	out, err := s.runner.Output(ctx, "v.category",
		"input="+s.vector, "option=report", "layer="+strconv.Itoa(s.layer), "-g", "--quiet")
	if err != nil {
		return gdalgrid.CategoryRange{}, fmt.Errorf("v.category %s: %w", s.vector, err)
	}
	rng, err := gdalgrid.ParseCategoryReport(bytes.NewReader(out), s.layer)
	if err != nil {
		return gdalgrid.CategoryRange{}, fmt.Errorf("categories of %s: %w", s.vector, err)
	}
	s.logger.Debug("categories", zap.String("map", s.vector), zap.Int("min", rng.Min), zap.Int("max", rng.Max))
	return rng, nil
}

func (s *Source) Extent(ctx context.Context) (gdalgrid.BBox, error) {
	out, err := s.runner.Output(ctx, "v.info", "map="+s.vector, "-g", "--quiet")
	if err != nil {
		return gdalgrid.BBox{}, fmt.Errorf("v.info %s: %w", s.vector, err)
	}
	bbox, err := parseRegion(out)
	if err != nil {
		return gdalgrid.BBox{}, fmt.Errorf("extent of %s: %w", s.vector, err)
	}
	return bbox, nil
}

// Open computes the bounding boxes of all the geometries of the map in a
// single v.to.db run
func (s *Source) Open(ctx context.Context) (gdalgrid.Layer, error) {
	out, err := s.runner.Output(ctx, "v.to.db", "-p", "map="+s.vector,
		"layer="+strconv.Itoa(s.layer), "option=bbox", "separator=pipe", "--quiet")
	if err != nil {
		return nil, fmt.Errorf("v.to.db %s: %w", s.vector, err)
	}
	boxes, err := parseBBoxes(out)
	if err != nil {
		return nil, fmt.Errorf("bboxes of %s: %w", s.vector, err)
	}
	s.logger.Debug("loaded geometry bboxes", zap.String("map", s.vector), zap.Int("count", len(boxes)))
	return layer{vector: s.vector, boxes: boxes}, nil
}

type layer struct {
	vector string
	boxes  map[int]gdalgrid.BBox
}

func (l layer) BBox(_ context.Context, id int) (gdalgrid.BBox, error) {
	b, ok := l.boxes[id]
	if !ok {
		return gdalgrid.BBox{}, fmt.Errorf("%s: %w %d", l.vector, gdalgrid.ErrMissingCategory, id)
	}
	return b, nil
}

func (l layer) Close() error {
	return nil
}

// parseRegion reads the north/south/east/west keys of "v.info -g"
func parseRegion(out []byte) (gdalgrid.BBox, error) {
	vals := map[string]float64{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch k {
		case "north", "south", "east", "west":
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return gdalgrid.BBox{}, fmt.Errorf("invalid %s value %q: %w", k, v, err)
			}
			vals[k] = f
		}
	}
	if err := sc.Err(); err != nil {
		return gdalgrid.BBox{}, err
	}
	for _, k := range []string{"north", "south", "east", "west"} {
		if _, ok := vals[k]; !ok {
			return gdalgrid.BBox{}, fmt.Errorf("missing %s key", k)
		}
	}
	return gdalgrid.BBox{North: vals["north"], South: vals["south"], East: vals["east"], West: vals["west"]}, nil
}

var columnAliases = map[string]string{
	"cat": "cat", "n": "north", "north": "north", "s": "south", "south": "south",
	"e": "east", "east": "east", "w": "west", "west": "west",
}

// parseBBoxes reads the pipe separated table printed by "v.to.db -p
// option=bbox". Columns are located by their header name; when the header is
// absent the cat|north|south|east|west order is assumed. Rows sharing a
// category are unioned.
func parseBBoxes(out []byte) (map[int]gdalgrid.BBox, error) {
	cols := map[string]int{"cat": 0, "north": 1, "south": 2, "east": 3, "west": 4}
	boxes := map[int]gdalgrid.BBox{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	ln := 0
	first := true
	for sc.Scan() {
		ln++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if first {
			first = false
			if _, err := strconv.Atoi(strings.TrimSpace(fields[0])); err != nil {
				hdr := map[string]int{}
				for i, f := range fields {
					if name, ok := columnAliases[strings.ToLower(strings.TrimSpace(f))]; ok {
						hdr[name] = i
					}
				}
				if len(hdr) != len(cols) {
					return nil, fmt.Errorf("line %d: unexpected header %q", ln, line)
				}
				cols = hdr
				continue
			}
		}
		val := func(name string) (float64, error) {
			idx := cols[name]
			if idx >= len(fields) {
				return 0, fmt.Errorf("line %d: missing %s column", ln, name)
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(fields[idx]), 64)
			if err != nil {
				return 0, fmt.Errorf("line %d: invalid %s %q: %w", ln, name, fields[idx], err)
			}
			return f, nil
		}
		var v [5]float64
		for i, name := range []string{"cat", "north", "south", "east", "west"} {
			f, err := val(name)
			if err != nil {
				return nil, err
			}
			v[i] = f
		}
		cat := int(v[0])
		if float64(cat) != v[0] {
			return nil, fmt.Errorf("line %d: non integer category %g", ln, v[0])
		}
		b := gdalgrid.BBox{North: v[1], South: v[2], East: v[3], West: v[4]}
		if prev, ok := boxes[cat]; ok {
			b = prev.Union(b)
		}
		boxes[cat] = b
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return boxes, nil
}
