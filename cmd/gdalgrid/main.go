package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/airbusgeo/gdalgrid"
	"github.com/airbusgeo/gdalgrid/grass"
	"github.com/airbusgeo/gdalgrid/ogr"
	"github.com/airbusgeo/godal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCmd := newGridCommand(gdalgrid.EnvFromOS(), newSource)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// sourceFactory builds the vector source for a validated configuration
type sourceFactory func(cfg gdalgrid.Config, logger *zap.Logger) gdalgrid.Source

func newSource(cfg gdalgrid.Config, logger *zap.Logger) gdalgrid.Source {
	if cfg.Backend == gdalgrid.BackendOGR {
		godal.RegisterAll()
		opts := []ogr.Option{ogr.CatField(cfg.CatField), ogr.Logger(logger)}
		if cfg.OGRLayer != "" {
			opts = append(opts, ogr.Layer(cfg.OGRLayer))
		}
		return ogr.New(cfg.VectorName(), opts...)
	}
	return grass.New(cfg.VectorName(), grass.Layer(cfg.Layer), grass.Logger(logger))
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

// applyKeyValues sets flags from GRASS style key=value arguments
func applyKeyValues(flags *pflag.FlagSet, args []string) error {
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return fmt.Errorf("unexpected argument %q, expecting key=value", arg)
		}
		if flags.Lookup(k) == nil {
			return fmt.Errorf("unknown option %q", k)
		}
		if err := flags.Set(k, v); err != nil {
			return fmt.Errorf("invalid value for %s: %w", k, err)
		}
	}
	return nil
}

// applyConfigFile sets the flags that were not given on the command line from
// the yaml configuration file
func applyConfigFile(flags *pflag.FlagSet, path string) error {
	values, err := gdalgrid.LoadConfigFile(path)
	if err != nil {
		return err
	}
	for k, v := range values {
		f := flags.Lookup(k)
		if f == nil || k == "config" {
			return fmt.Errorf("%s: unknown option %q", path, k)
		}
		if f.Changed {
			continue
		}
		if err := f.Value.Set(v); err != nil {
			return fmt.Errorf("%s: invalid value for %s: %w", path, k, err)
		}
	}
	return nil
}

func newGridCommand(env gdalgrid.Env, mkSource sourceFactory) *cobra.Command {
	cfg := gdalgrid.DefaultConfig()
	var configFile string
	var verbose bool
	var logger *zap.Logger
	var grid gdalgrid.Grid

	cmd := &cobra.Command{
		Use:   "gdalgrid [flags] [key=value...]",
		Short: "write gdal_translate commands to extract tiles matching the bbox of vector geometries",
		Long: `gdalgrid computes the bounding box of every geometry of a vector layer and writes
one gdal_translate command per geometry, extracting an integer aligned window
enlarged by one unit on each side so that adjacent tiles overlap.

Options can be given as flags (--prefix=t) or GRASS style (prefix=t).`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if err := applyKeyValues(flags, args); err != nil {
				return err
			}
			if configFile != "" {
				if err := applyConfigFile(flags, configFile); err != nil {
					return err
				}
			}
			var err error
			if logger, err = newLogger(verbose); err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			if err := cfg.Validate(env); err != nil {
				return err
			}
			switches, _ := gdalgrid.ParseSwitches(cfg.Switches)
			opts := []gdalgrid.Option{gdalgrid.Logger(logger), gdalgrid.Switches(switches...)}
			if cfg.SkipMissing {
				opts = append(opts, gdalgrid.SkipMissing())
			}
			if grid, err = gdalgrid.NewGrid(opts...); err != nil {
				return err
			}
			return nil
		},
		PostRun: func(cmd *cobra.Command, _ []string) {
			_ = logger.Sync()
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&cfg.Input, "input", "", "name of input vector map (GRASS backend), or vector dataset (OGR backend)")
	flags.BoolVarP(&cfg.PrintMinMaxCats, "c", "c", false, "print minimum and maximum cats of vector")
	flags.BoolVarP(&cfg.PrintBBox, "b", "b", false, "print bounding box of vector layer")
	flags.BoolVarP(&cfg.PrintGeomBBoxes, "t", "t", false, "print bounding box of vector geometries")
	flags.BoolVarP(&cfg.ExportCmds, "s", "s", false, "write gdal_translate commands into a file")
	flags.StringVar(&cfg.Dir, "dir", "", "directory where the output will be found")
	flags.StringVar(&cfg.Prefix, "prefix", "", "raster output prefix (must start with a letter)")
	flags.StringVar(&cfg.Raster, "raster", "", "input raster name for the gdal_translate command")
	flags.StringVar(&cfg.File, "file", "", "name of the file holding the gdal_translate commands")
	flags.StringVar(&cfg.Backend, "backend", cfg.Backend, "vector source: grass or ogr")
	flags.IntVar(&cfg.Layer, "layer", cfg.Layer, "category layer (grass backend)")
	flags.StringVar(&cfg.OGRLayer, "ogr_layer", "", "layer name, defaults to the first layer (ogr backend)")
	flags.StringVar(&cfg.CatField, "cat_field", cfg.CatField, "integer field holding the category (ogr backend)")
	flags.StringVar(&cfg.Switches, "switches", "", "additional gdal_translate switches, e.g. \"-b 1 -a_nodata 0\"")
	flags.BoolVar(&cfg.SkipMissing, "skip_missing", false, "skip categories without geometry instead of failing")
	flags.StringVar(&configFile, "config", "", "yaml file holding option values")
	flags.BoolVar(&verbose, "verbose", false, "verbose output")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		src := mkSource(cfg, logger)

		rng, err := src.Categories(ctx)
		if err != nil {
			return err
		}
		if cfg.PrintMinMaxCats {
			fmt.Fprintln(out, rng)
		}
		if cfg.PrintBBox {
			bbox, err := src.Extent(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, bbox)
		}
		if cfg.PrintGeomBBoxes {
			if err := grid.PrintBBoxes(ctx, out, src, rng); err != nil {
				return err
			}
		}
		if cfg.ExportCmds {
			if _, err := grid.WriteCommandFile(ctx, cfg.OutputPath(), src, rng, cfg.Prefix, cfg.Raster); err != nil {
				return err
			}
		}
		return nil
	}
	return cmd
}
