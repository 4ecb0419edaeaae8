package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"carbonweaver/internal/raster"
)

func writeLULC(t *testing.T, dir, name string, w, h int, px float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	info := raster.Info{Width: w, Height: h, PixelSize: [2]float64{px, -px}, Type: raster.Int16}
	require.NoError(t, raster.Write(path, info, make([]float64, w*h)))
	return path
}

func writePools(t *testing.T, dir, header string) string {
	t.Helper()
	path := filepath.Join(dir, "pools.csv")
	require.NoError(t, os.WriteFile(path, []byte(header+"\n1,1,1,1,1\n"), 0o644))
	return path
}

func validArgs(t *testing.T) map[string]any {
	t.Helper()
	dir := t.TempDir()
	return map[string]any{
		"workspace_dir":     filepath.Join(dir, "ws"),
		"lulc_bas_path":     writeLULC(t, dir, "bas.tif", 2, 2, 30),
		"carbon_pools_path": writePools(t, dir, "LUCODE,c_above,c_below,c_soil,c_dead"),
	}
}

func TestValidate_ValidArgs(t *testing.T) {
	require.Empty(t, Validate(validArgs(t), ""))
}

func TestValidate_MissingAndEmpty(t *testing.T) {
	args := validArgs(t)
	delete(args, "lulc_bas_path")
	args["carbon_pools_path"] = ""
	args["do_valuation"] = true

	issues := Validate(args, "")
	require.Equal(t, Issue{
		Keys: []string{
			"calc_sequestration", "discount_rate", "lulc_alt_year", "lulc_bas_path",
			"lulc_bas_year", "price_per_metric_ton_of_c", "rate_change",
		},
		Message: MsgMissingKey,
	}, issues[0])
	require.Equal(t, Issue{Keys: []string{"carbon_pools_path"}, Message: MsgMissingValue}, issues[1])
}

func TestValidate_Types(t *testing.T) {
	args := validArgs(t)
	args["n_workers"] = "lots"
	args["do_valuation"] = "maybe"
	args["lulc_bas_year"] = 2020.5
	args["lulc_alt_path"] = filepath.Join(t.TempDir(), "nope.tif")

	byKey := map[string]string{}
	for _, is := range Validate(args, "") {
		require.Len(t, is.Keys, 1)
		byKey[is.Keys[0]] = is.Message
	}
	require.Equal(t, `Value "lots" could not be interpreted as a number`, byKey["n_workers"])
	require.Equal(t, `Value "maybe" could not be interpreted as a boolean`, byKey["do_valuation"])
	require.Equal(t, `Value "2020.5" must be an integer`, byKey["lulc_bas_year"])
	require.Equal(t, MsgFileNotFound, byKey["lulc_alt_path"])
}

func TestValidate_YearOrder(t *testing.T) {
	args := validArgs(t)
	args["do_valuation"] = true
	args["lulc_bas_year"] = 2030
	args["lulc_alt_year"] = "2020"

	issues := Validate(args, "lulc_alt_year")
	require.Len(t, issues, 1)
	require.Contains(t, issues[0].Message, "(2020)")
	require.Contains(t, issues[0].Message, "(2030)")

	require.Empty(t, Validate(args, "lulc_bas_path"))
}

func TestValidate_YearOrderIgnoredWithoutValuation(t *testing.T) {
	args := validArgs(t)
	args["do_valuation"] = false
	args["lulc_bas_year"] = 2030
	args["lulc_alt_year"] = 2020

	require.Empty(t, Validate(args, ""))
}

func TestValidate_MissingColumn(t *testing.T) {
	args := validArgs(t)
	args["carbon_pools_path"] = writePools(t, t.TempDir(), "lucode,c_above,c_below,c_soil")

	issues := Validate(args, "carbon_pools_path")
	require.Equal(t, []Issue{{Keys: []string{"carbon_pools_path"}, Message: `Expected the column "c_dead" but did not find it`}}, issues)
}

func TestValidate_SpatialAgreement(t *testing.T) {
	dir := t.TempDir()
	args := validArgs(t)
	args["lulc_bas_path"] = writeLULC(t, dir, "bas.tif", 2, 2, 30)
	args["lulc_alt_path"] = writeLULC(t, dir, "alt.tif", 3, 2, 90)

	issues := Validate(args, "lulc_alt_path")
	require.Equal(t, []Issue{
		{Keys: SpatialKeys, Message: "Rasters have different pixel sizes"},
		{Keys: SpatialKeys, Message: "Rasters have different dimensions"},
	}, issues)
}
