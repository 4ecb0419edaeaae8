package carbon

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"carbonweaver/internal/raster"
)

// CarbonNodata is the nodata value of mapped pool rasters and totals.
const CarbonNodata = -1.0

// Reclassification error labels for the pool table lookup.
const (
	lulcRasterName = "LULC"
	poolsTableName = "Carbon Pools"
)

// MapCarbon writes a float32 raster at outPath holding mapping[code] for every
// pixel of the LULC raster at lulcPath. LULC nodata becomes CarbonNodata.
// Codes without an entry fail with a *ReclassificationError listing all of
// them, and no output is left behind.
func MapCarbon(lulcPath string, mapping map[int64]float64, outPath string) (err error) {
	src, err := raster.Open(lulcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	in := src.Info()
	out := in
	out.Type = raster.Float32
	out.Nodata, out.HasNodata = CarbonNodata, true

	dst, err := raster.Create(outPath, out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if err != nil {
			os.Remove(outPath)
		}
	}()

	missing := map[int64]struct{}{}
	var buf []float64
	err = src.Iterate(func(b raster.Block) error {
		if cap(buf) < len(b.Values) {
			buf = make([]float64, len(b.Values))
		}
		vals := buf[:len(b.Values)]
		for i, v := range b.Values {
			if in.IsNodata(v) {
				vals[i] = CarbonNodata
				continue
			}
			if v != math.Trunc(v) {
				return fmt.Errorf("LULC raster %s has non-integer value %v at row %d", lulcPath, v, b.YOff+i/b.Width)
			}
			density, ok := mapping[int64(v)]
			if !ok {
				missing[int64(v)] = struct{}{}
				continue
			}
			vals[i] = density
		}
		if len(missing) > 0 {
			return nil
		}
		return dst.WriteRows(b.YOff, b.Rows, vals)
	})
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		codes := make([]int64, 0, len(missing))
		for c := range missing {
			codes = append(codes, c)
		}
		sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
		return &ReclassificationError{
			RasterName: lulcRasterName,
			Path:       lulcPath,
			Column:     LucodeColumn,
			Table:      poolsTableName,
			Missing:    codes,
		}
	}
	return nil
}
