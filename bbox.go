package gdalgrid

import (
	"fmt"
	"strconv"
)

// A BBox is the axis aligned rectangle enclosing a geometry or a whole layer,
// expressed in the layer's coordinate reference system.
type BBox struct {
	North, South, East, West float64
}

// Union returns the smallest BBox enclosing both b and o.
func (b BBox) Union(o BBox) BBox {
	if o.North > b.North {
		b.North = o.North
	}
	if o.South < b.South {
		b.South = o.South
	}
	if o.East > b.East {
		b.East = o.East
	}
	if o.West < b.West {
		b.West = o.West
	}
	return b
}

// BBoxFromBounds converts a gdal style [minx,miny,maxx,maxy] array to a BBox.
func BBoxFromBounds(b [4]float64) BBox {
	return BBox{West: b[0], South: b[1], East: b[2], North: b[3]}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (b BBox) String() string {
	return fmt.Sprintf("north: %s south: %s west: %s east: %s",
		formatCoord(b.North), formatCoord(b.South), formatCoord(b.West), formatCoord(b.East))
}

// A Window is an integer aligned projection window, i.e. the rectangle passed
// to gdal_translate's -projwin switch as <West> <North> <East> <South>.
type Window struct {
	West, North, East, South int
}

// TileMargin is the number of coordinate units each edge of a Window is pushed
// outwards so that adjacent tiles overlap.
const TileMargin = 1

// Window truncates each bound toward zero and expands the result by
// TileMargin on every side. Truncation (and not floor/ceil) is intentional:
// -10.9 becomes -10 before the margin is applied.
func (b BBox) Window() Window {
	return Window{
		West:  int(b.West) - TileMargin,
		North: int(b.North) + TileMargin,
		East:  int(b.East) + TileMargin,
		South: int(b.South) - TileMargin,
	}
}
