package gdalgrid

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// ErrNotInGRASS is returned when the GRASS backend is used outside of a GRASS session
var ErrNotInGRASS = errors.New("You must be in GRASS GIS to run this program.")

const (
	BackendGRASS = "grass"
	BackendOGR   = "ogr"
)

// Env holds the parts of the process environment the program depends on. It
// is captured once at startup.
type Env struct {
	// GISBase is the GRASS installation directory, only set inside a GRASS session
	GISBase string
}

// EnvFromOS captures Env from the process environment
func EnvFromOS() Env {
	return Env{GISBase: os.Getenv("GISBASE")}
}

// Config enumerates every option of a run. The json tags double as the keys
// of the yaml configuration file and of the GRASS style key=value arguments.
type Config struct {
	Input  string `json:"input"`
	Dir    string `json:"dir,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Raster string `json:"raster,omitempty"`
	File   string `json:"file,omitempty"`

	PrintMinMaxCats bool `json:"c,omitempty"`
	PrintBBox       bool `json:"b,omitempty"`
	PrintGeomBBoxes bool `json:"t,omitempty"`
	ExportCmds      bool `json:"s,omitempty"`

	Backend     string `json:"backend,omitempty"`
	Layer       int    `json:"layer,omitempty"`
	OGRLayer    string `json:"ogr_layer,omitempty"`
	CatField    string `json:"cat_field,omitempty"`
	Switches    string `json:"switches,omitempty"`
	SkipMissing bool   `json:"skip_missing,omitempty"`
}

// DefaultConfig returns a Config with the default backend, layer and category field
func DefaultConfig() Config {
	return Config{
		Backend:  BackendGRASS,
		Layer:    1,
		CatField: "cat",
	}
}

// VectorName returns the vector map name, stripped of any @mapset suffix. For
// the OGR backend, where the input is a dataset path, Input is returned as is.
func (c Config) VectorName() string {
	if c.Backend == BackendOGR {
		return c.Input
	}
	name, _, _ := strings.Cut(c.Input, "@")
	return name
}

// OutputPath returns the path of the command file
func (c Config) OutputPath() string {
	return filepath.Join(c.Dir, c.File)
}

// Validate checks the configuration is usable in the given environment
func (c Config) Validate(env Env) error {
	switch c.Backend {
	case BackendGRASS:
		if env.GISBase == "" {
			return ErrNotInGRASS
		}
		if c.Layer < 1 {
			return invalidOptionf("layer must be >=1")
		}
	case BackendOGR:
		if c.CatField == "" {
			return invalidOptionf("cat_field is required with the %s backend", BackendOGR)
		}
	default:
		return invalidOptionf("unknown backend %q, expecting %s or %s", c.Backend, BackendGRASS, BackendOGR)
	}
	if c.VectorName() == "" {
		return invalidOptionf("input is required")
	}
	if c.ExportCmds {
		if err := CheckPrefix(c.Prefix); err != nil {
			return err
		}
		if c.Raster == "" {
			return invalidOptionf("raster is required to write commands")
		}
		if c.File == "" {
			return invalidOptionf("file is required to write commands")
		}
		if c.Dir != "" {
			st, err := os.Stat(c.Dir)
			if err != nil {
				return invalidOptionf("output directory: %v", err)
			}
			if !st.IsDir() {
				return invalidOptionf("output directory %s is not a directory", c.Dir)
			}
		}
	}
	if _, err := ParseSwitches(c.Switches); err != nil {
		return err
	}
	return nil
}

// LoadConfigFile reads a yaml configuration file as a map of option names to
// their string values
func LoadConfigFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch vv := v.(type) {
		case nil:
			continue
		case map[string]interface{}, []interface{}:
			return nil, fmt.Errorf("parse %s: key %s: expecting a scalar value", path, k)
		case float64:
			values[k] = formatCoord(vv)
		default:
			values[k] = fmt.Sprint(vv)
		}
	}
	return values, nil
}
