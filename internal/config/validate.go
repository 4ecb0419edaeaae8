package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"carbonweaver/internal/raster"
)

// Issue is one validation finding: the offending keys and a message.
type Issue struct {
	Keys    []string `json:"keys"`
	Message string   `json:"message"`
}

const (
	MsgMissingKey    = "Key is missing from the args dict"
	MsgMissingValue  = "Input is required but has no value"
	MsgFileNotFound  = "File not found"
	MsgNotDirectory  = "Path must be a directory"
	MsgNotNumber     = "Value %q could not be interpreted as a number"
	MsgNotInteger    = "Value %q must be an integer"
	MsgNotBoolean    = "Value %q could not be interpreted as a boolean"
	MsgBelowMin      = "Value %v is less than the minimum of %v"
	MsgMissingColumn = "Expected the column %q but did not find it"
)

// Validate checks raw args against Schema and the cross-field rules. When
// limitTo is non-empty only issues naming that key are returned. An empty
// result means the args are valid.
func Validate(args map[string]any, limitTo string) []Issue {
	var issues []Issue
	var missing, empty []string
	invalid := map[string]bool{}

	for _, f := range Schema {
		v, present := args[f.Name]
		required := f.Required || (f.RequiredIf != "" && truthy(args[f.RequiredIf]))
		switch {
		case !present:
			if required {
				missing = append(missing, f.Name)
			}
			invalid[f.Name] = true
		case isEmpty(v):
			if required {
				empty = append(empty, f.Name)
			}
			invalid[f.Name] = true
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		issues = append(issues, Issue{Keys: missing, Message: MsgMissingKey})
	}
	if len(empty) > 0 {
		sort.Strings(empty)
		issues = append(issues, Issue{Keys: empty, Message: MsgMissingValue})
	}

	for _, f := range Schema {
		if invalid[f.Name] {
			continue
		}
		if msg := checkField(f, args[f.Name]); msg != "" {
			issues = append(issues, Issue{Keys: []string{f.Name}, Message: msg})
			invalid[f.Name] = true
		}
	}

	if truthy(args["do_valuation"]) && !invalid["lulc_bas_year"] && !invalid["lulc_alt_year"] {
		bas, _ := number(args["lulc_bas_year"])
		alt, _ := number(args["lulc_alt_year"])
		if alt <= bas {
			issues = append(issues, Issue{
				Keys:    []string{"lulc_alt_year"},
				Message: fmt.Sprintf("The alternate LULC year (%v) must be greater than the baseline LULC year (%v)", alt, bas),
			})
		}
	}

	issues = append(issues, spatialIssues(args, invalid)...)

	if limitTo == "" {
		return issues
	}
	var limited []Issue
	for _, is := range issues {
		if slices.Contains(is.Keys, limitTo) {
			limited = append(limited, is)
		}
	}
	return limited
}

func checkField(f Field, v any) string {
	switch f.Kind {
	case KindNumber, KindInteger:
		n, ok := number(v)
		if !ok {
			return fmt.Sprintf(MsgNotNumber, fmt.Sprint(v))
		}
		if f.Kind == KindInteger && n != math.Trunc(n) {
			return fmt.Sprintf(MsgNotInteger, fmt.Sprint(v))
		}
		if f.Min != nil && n < *f.Min {
			return fmt.Sprintf(MsgBelowMin, n, *f.Min)
		}
	case KindBoolean:
		if _, ok := boolean(v); !ok {
			return fmt.Sprintf(MsgNotBoolean, fmt.Sprint(v))
		}
	case KindDirectory:
		st, err := os.Stat(fmt.Sprint(v))
		if err == nil && !st.IsDir() {
			return MsgNotDirectory
		}
	case KindRaster:
		path := fmt.Sprint(v)
		if _, err := os.Stat(path); err != nil {
			return MsgFileNotFound
		}
		if _, err := raster.ReadInfo(path); err != nil {
			return fmt.Sprintf("File could not be opened as a raster: %v", err)
		}
	case KindCSV:
		path := fmt.Sprint(v)
		if _, err := os.Stat(path); err != nil {
			return MsgFileNotFound
		}
		return checkColumns(path, f.Columns)
	}
	return ""
}

func checkColumns(path string, want []string) string {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Sprintf("File could not be opened: %v", err)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "Table is empty"
		}
		return fmt.Sprintf("File could not be read as a CSV: %v", err)
	}
	have := map[string]bool{}
	for _, h := range header {
		have[NormalizeColumn(h)] = true
	}
	for _, c := range want {
		if !have[c] {
			return fmt.Sprintf(MsgMissingColumn, c)
		}
	}
	return ""
}

// NormalizeColumn lowercases a CSV header and strips spaces and a UTF-8 BOM.
func NormalizeColumn(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

func spatialIssues(args map[string]any, invalid map[string]bool) []Issue {
	var keys []string
	var infos []raster.Info
	for _, k := range SpatialKeys {
		if invalid[k] {
			continue
		}
		info, err := raster.ReadInfo(fmt.Sprint(args[k]))
		if err != nil {
			continue
		}
		keys = append(keys, k)
		infos = append(infos, info)
	}
	if len(infos) < 2 {
		return nil
	}

	var issues []Issue
	for _, in := range infos[1:] {
		if in.PixelSize != infos[0].PixelSize {
			issues = append(issues, Issue{Keys: keys, Message: "Rasters have different pixel sizes"})
			break
		}
	}
	for _, in := range infos[1:] {
		if in.Width != infos[0].Width || in.Height != infos[0].Height {
			issues = append(issues, Issue{Keys: keys, Message: "Rasters have different dimensions"})
			break
		}
	}
	return issues
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f)
	default:
		return 0, false
	}
}

func boolean(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		p, err := strconv.ParseBool(strings.TrimSpace(b))
		return p, err == nil
	case int:
		return b != 0, b == 0 || b == 1
	default:
		return false, false
	}
}

func truthy(v any) bool {
	b, ok := boolean(v)
	return ok && b
}
