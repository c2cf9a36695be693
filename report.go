package gdalgrid

import (
	"context"
	"fmt"
	"io"
)

// PrintBBoxes writes one "cat <id>: north: .. south: .. west: .. east: .." line
// per geometry of src to w
func (g Grid) PrintBBoxes(ctx context.Context, w io.Writer, src Source, rng CategoryRange) error {
	return g.Walk(ctx, src, rng, func(id int, bbox BBox) error {
		if _, err := fmt.Fprintf(w, "cat %d: %s\n", id, bbox); err != nil {
			return fmt.Errorf("print bbox of cat %d: %w", id, err)
		}
		return nil
	})
}
