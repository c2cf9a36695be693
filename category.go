package gdalgrid

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrCategoryReport is returned when a category report cannot be parsed
var ErrCategoryReport = errors.New("malformed category report")

// A CategoryRange holds the smallest and largest category IDs of a layer.
//
// Iteration always starts at 1 and runs up to Max, whatever Min is: category
// IDs are assumed to be contiguous.
type CategoryRange struct {
	Min, Max int
}

// Count returns the number of IDs visited when iterating over the range
func (c CategoryRange) Count() int {
	if c.Max < 1 {
		return 0
	}
	return c.Max
}

func (c CategoryRange) String() string {
	return fmt.Sprintf("min cat: %d max cat: %d", c.Min, c.Max)
}

// ParseCategoryReport extracts the category range of the given layer from the
// shell-style output of "v.category option=report -g".
//
// Each line of the report is a row of the form
//
//	<layer> <type> <count> <min> <max>
//
// and the range is read from the row whose type is "all". Rows for other
// layers or feature types are ignored.
func ParseCategoryReport(r io.Reader, layer int) (CategoryRange, error) {
	sc := bufio.NewScanner(r)
	ln := 0
	for sc.Scan() {
		ln++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 5 {
			return CategoryRange{}, fmt.Errorf("%w: line %d: expected 5 columns, got %d", ErrCategoryReport, ln, len(fields))
		}
		l, err := strconv.Atoi(fields[0])
		if err != nil {
			return CategoryRange{}, fmt.Errorf("%w: line %d: layer %q: %v", ErrCategoryReport, ln, fields[0], err)
		}
		if l != layer || fields[1] != "all" {
			continue
		}
		min, err := strconv.Atoi(fields[3])
		if err != nil {
			return CategoryRange{}, fmt.Errorf("%w: line %d: min %q: %v", ErrCategoryReport, ln, fields[3], err)
		}
		max, err := strconv.Atoi(fields[4])
		if err != nil {
			return CategoryRange{}, fmt.Errorf("%w: line %d: max %q: %v", ErrCategoryReport, ln, fields[4], err)
		}
		return CategoryRange{Min: min, Max: max}, nil
	}
	if err := sc.Err(); err != nil {
		return CategoryRange{}, fmt.Errorf("read category report: %w", err)
	}
	return CategoryRange{}, fmt.Errorf("%w: no \"all\" row for layer %d", ErrCategoryReport, layer)
}
