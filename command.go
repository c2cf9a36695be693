package gdalgrid

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/alessio/shellescape"
	shellwords "github.com/mattn/go-shellwords"
)

// CreationOptions are the GTiff creation options set on every extracted tile
var CreationOptions = []string{"TILED=YES", "COMPRESS=LZW", "PREDICTOR=2"}

// An ExtractionCommand is a gdal_translate invocation that extracts Window
// from Raster into a tile named after Prefix, ID and Window.
//
// In gdal lingo, the command is
//
//	gdal_translate -projwin <West> <North> <East> <South> -co TILED=YES -co COMPRESS=LZW -co PREDICTOR=2 <Raster> <OutputName>
type ExtractionCommand struct {
	ID     int
	Window Window
	Raster string
	Prefix string
	// Switches are extra gdal_translate switches, inserted before the dataset names
	Switches []string
}

// OutputName returns <Prefix>_<ID>_<West>_<North>_<East>_<South>.tif
func (c ExtractionCommand) OutputName() string {
	return fmt.Sprintf("%s_%d_%d_%d_%d_%d.tif", c.Prefix, c.ID,
		c.Window.West, c.Window.North, c.Window.East, c.Window.South)
}

// Args returns the command line as an argument vector, without any quoting
func (c ExtractionCommand) Args() []string {
	args := []string{"gdal_translate", "-projwin",
		fmt.Sprintf("%d", c.Window.West),
		fmt.Sprintf("%d", c.Window.North),
		fmt.Sprintf("%d", c.Window.East),
		fmt.Sprintf("%d", c.Window.South),
	}
	for _, co := range CreationOptions {
		args = append(args, "-co", co)
	}
	args = append(args, c.Switches...)
	return append(args, c.Raster, c.OutputName())
}

// String returns the command as a single shell line. Arguments are quoted only
// when they contain characters that are not shell-safe.
func (c ExtractionCommand) String() string {
	return printCommand(c.Args())
}

func printCommand(cmd []string) string {
	sb := strings.Builder{}
	for i, c := range cmd {
		if i != 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(shellescape.Quote(c))
	}
	return sb.String()
}

// ParseSwitches splits a shell-quoted string of gdal_translate switches, and
// checks them with CheckSwitches
func ParseSwitches(sw string) ([]string, error) {
	switches, err := shellwords.Parse(sw)
	if err != nil {
		return nil, invalidOptionf("invalid switches %q: %v", sw, err)
	}
	if err := CheckSwitches(switches); err != nil {
		return nil, err
	}
	return switches, nil
}

// CheckSwitches returns an error if one of the switches would alter the
// extraction window computed from the geometry's bounding box
func CheckSwitches(sw []string) error {
	for _, s := range sw {
		switch s {
		case "-projwin", "-projwin_srs", "-srcwin", "-te", "-outsize", "-tr", "-a_ullr":
			return invalidOptionf("%s switch not allowed, the extraction window is derived from the geometry", s)
		}
	}
	return nil
}

// CheckPrefix returns an error if prefix does not start with a letter
func CheckPrefix(prefix string) error {
	for _, r := range prefix {
		if !unicode.IsLetter(r) {
			return invalidOptionf("prefix %q must start with a letter", prefix)
		}
		return nil
	}
	return invalidOptionf("prefix must not be empty")
}
