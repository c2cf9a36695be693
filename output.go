package gdalgrid

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Commands walks src and returns the extraction command of every geometry
func (g Grid) Commands(ctx context.Context, src Source, rng CategoryRange, prefix, raster string) ([]ExtractionCommand, error) {
	var cmds []ExtractionCommand
	err := g.Walk(ctx, src, rng, func(id int, bbox BBox) error {
		cmds = append(cmds, g.command(id, bbox, prefix, raster))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cmds, nil
}

func (g Grid) command(id int, bbox BBox, prefix, raster string) ExtractionCommand {
	return ExtractionCommand{
		ID:       id,
		Window:   bbox.Window(),
		Raster:   raster,
		Prefix:   prefix,
		Switches: g.switches,
	}
}

// WriteCommands writes one extraction command line per geometry of src to w,
// and returns the number of lines written
func (g Grid) WriteCommands(ctx context.Context, w io.Writer, src Source, rng CategoryRange, prefix, raster string) (int, error) {
	if err := CheckPrefix(prefix); err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	n := 0
	err := g.Walk(ctx, src, rng, func(id int, bbox BBox) error {
		cmd := g.command(id, bbox, prefix, raster)
		if _, err := fmt.Fprintln(bw, cmd.String()); err != nil {
			return fmt.Errorf("write command for cat %d: %w", id, err)
		}
		g.logger.Debug("command", zap.Int("cat", id), zap.String("tile", cmd.OutputName()))
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("flush commands: %w", err)
	}
	return n, nil
}

// WriteCommandFile writes the extraction commands to the file at path. The file
// is replaced atomically: commands are written to a temporary file in the same
// directory which is renamed to path once complete, so that a failed run
// leaves any previous file untouched.
func (g Grid) WriteCommandFile(ctx context.Context, path string, src Source, rng CategoryRange, prefix, raster string) (int, error) {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.New().String()))
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmpPath, err)
	}
	n, err := g.WriteCommands(ctx, tmp, src, rng, prefix, raster)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("rename %s->%s: %w", tmpPath, path, err)
	}
	g.logger.Info("wrote extraction commands", zap.String("file", path), zap.Int("count", n))
	return n, nil
}
