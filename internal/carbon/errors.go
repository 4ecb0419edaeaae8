package carbon

import (
	"fmt"
	"strings"
)

// ConfigError is an invalid combination of run arguments, raised before any
// task starts.
type ConfigError struct {
	Keys []string
	Msg  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid input %v: %s", e.Keys, e.Msg)
}

// GeometryError reports rasters that must share a grid but do not.
type GeometryError struct {
	Keys []string
	Msg  string
}

func (e *GeometryError) Error() string { return e.Msg }

// ReclassificationError reports LULC codes that have no row in the lookup table.
type ReclassificationError struct {
	RasterName string
	Path       string
	Column     string
	Table      string
	Missing    []int64
}

func (e *ReclassificationError) Error() string {
	codes := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		codes[i] = fmt.Sprint(c)
	}
	return fmt.Sprintf(
		"values in the %s raster %s were not found in the %q column of the %s table; "+
			"the missing values found in the %s raster but not the table are: %s",
		e.RasterName, e.Path, e.Column, e.Table, e.RasterName, strings.Join(codes, ", "))
}
