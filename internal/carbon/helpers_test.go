package carbon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"carbonweaver/internal/raster"
)

const lulcNodata = -9999

func lulcInfo(w, h int, px float64) raster.Info {
	return raster.Info{
		Width:     w,
		Height:    h,
		PixelSize: [2]float64{px, -px},
		Origin:    [2]float64{500000, 4200000},
		Nodata:    lulcNodata,
		HasNodata: true,
		Type:      raster.Int32,
	}
}

func writeRaster(t *testing.T, path string, info raster.Info, vals []float64) string {
	t.Helper()
	require.NoError(t, raster.Write(path, info, vals))
	return path
}

func writeFloatRaster(t *testing.T, path string, nodata float64, vals ...float64) string {
	t.Helper()
	info := raster.Info{
		Width:     len(vals),
		Height:    1,
		PixelSize: [2]float64{10, -10},
		Nodata:    nodata,
		HasNodata: true,
		Type:      raster.Float64,
	}
	return writeRaster(t, path, info, vals)
}

func readValues(t *testing.T, path string) (raster.Info, []float64) {
	t.Helper()
	info, vals, err := raster.ReadAll(path)
	require.NoError(t, err)
	return info, vals
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
