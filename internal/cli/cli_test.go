package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"carbonweaver/internal/carbon"
	"carbonweaver/internal/config"
	"carbonweaver/internal/raster"
)

const poolsCSV = "lucode,c_above,c_below,c_soil,c_dead\n1,40,30,20,10\n2,0,0,0,0\n"

// writeInputs lays out a run directory with relative paths in args.yaml and
// returns the args file path.
func writeInputs(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	info := raster.Info{
		Width:     2,
		Height:    2,
		PixelSize: [2]float64{100, -100},
		Nodata:    255,
		HasNodata: true,
		Type:      raster.Uint8,
	}
	require.NoError(t, raster.Write(filepath.Join(dir, "bas.tif"), info, []float64{1, 1, 1, 1}))
	require.NoError(t, raster.Write(filepath.Join(dir, "alt.tif"), info, []float64{1, 2, 1, 1}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pools.csv"), []byte(poolsCSV), 0o644))

	body := "workspace_dir: ws\n" +
		"lulc_bas_path: bas.tif\n" +
		"carbon_pools_path: pools.csv\n" + extra
	path := filepath.Join(dir, "args.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), append(args, "--no-color"), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_BaselineOnly(t *testing.T) {
	cfg := writeInputs(t, "")

	code, out, errOut := runCLI(t, "run", "--config", cfg)
	require.Equal(t, ExitSuccess, code, errOut)
	require.Contains(t, out, "Carbon model finished: 6 tasks (6 executed, 0 cached)")
	require.Contains(t, out, "Total bas")
	require.Contains(t, out, "400.00 metric tons")

	ws := filepath.Join(filepath.Dir(cfg), "ws")
	require.FileExists(t, filepath.Join(ws, "tot_c_bas.tif"))
	require.NoFileExists(t, filepath.Join(ws, "tot_c_alt.tif"))
	require.Contains(t, errOut, "Building file registry")
}

func TestRun_SecondRunIsCached(t *testing.T) {
	cfg := writeInputs(t, "calc_sequestration: true\nlulc_alt_path: alt.tif\n")

	code, _, errOut := runCLI(t, "run", "--config", cfg)
	require.Equal(t, ExitSuccess, code, errOut)
	code, out, errOut := runCLI(t, "run", "--config", cfg, "--n-workers", "2")
	require.Equal(t, ExitSuccess, code, errOut)
	// The report lists n_workers, so only it reruns.
	require.Contains(t, out, "(1 executed, 11 cached)")
	require.Contains(t, out, "Change in C for alt")
	require.Contains(t, out, "-100.00 metric tons")
}

func TestRun_Overrides(t *testing.T) {
	cfg := writeInputs(t, "")

	code, _, errOut := runCLI(t, "run", "--config", cfg, "--workspace", "other", "--results-suffix", "x")
	require.Equal(t, ExitSuccess, code, errOut)
	require.FileExists(t, filepath.Join(filepath.Dir(cfg), "other", "tot_c_bas_x.tif"))
}

func TestRun_ExitCodes(t *testing.T) {
	cases := map[string]struct {
		args func(t *testing.T) []string
		want int
	}{
		"missing config flag": {
			args: func(*testing.T) []string { return []string{"run"} },
			want: ExitInvalidInvocation,
		},
		"unknown flag": {
			args: func(*testing.T) []string { return []string{"run", "--bogus"} },
			want: ExitInvalidInvocation,
		},
		"unknown command": {
			args: func(*testing.T) []string { return []string{"frobnicate"} },
			want: ExitInvalidInvocation,
		},
		"positional args": {
			args: func(t *testing.T) []string { return []string{"run", "--config", writeInputs(t, ""), "extra"} },
			want: ExitInvalidInvocation,
		},
		"bad log level": {
			args: func(t *testing.T) []string {
				return []string{"run", "--config", writeInputs(t, ""), "--log-level", "loud"}
			},
			want: ExitInvalidInvocation,
		},
		"config file missing": {
			args: func(t *testing.T) []string {
				return []string{"run", "--config", filepath.Join(t.TempDir(), "none.yaml")}
			},
			want: ExitConfigError,
		},
		"validation issue": {
			args: func(t *testing.T) []string {
				return []string{"run", "--config", writeInputs(t, "do_valuation: true\n")}
			},
			want: ExitConfigError,
		},
		"missing lucode": {
			args: func(t *testing.T) []string {
				cfg := writeInputs(t, "")
				info, err := raster.ReadInfo(filepath.Join(filepath.Dir(cfg), "bas.tif"))
				require.NoError(t, err)
				require.NoError(t, raster.Write(filepath.Join(filepath.Dir(cfg), "bas.tif"), info, []float64{1, 3, 1, 1}))
				return []string{"run", "--config", cfg}
			},
			want: ExitGraphFailure,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tc.args(t)...)
			require.Equal(t, tc.want, code, errOut)
		})
	}
}

func TestRun_TaskFailureSummary(t *testing.T) {
	cfg := writeInputs(t, "")
	dir := filepath.Dir(cfg)
	info, err := raster.ReadInfo(filepath.Join(dir, "bas.tif"))
	require.NoError(t, err)
	require.NoError(t, raster.Write(filepath.Join(dir, "bas.tif"), info, []float64{1, 3, 1, 1}))

	code, out, errOut := runCLI(t, "run", "--config", cfg)
	require.Equal(t, ExitGraphFailure, code)
	require.Contains(t, out, "Task "+carbon.MapTaskName(carbon.PoolAbove, carbon.Baseline)+" failed")
	require.Contains(t, out, "4 failed, 2 skipped")
	require.Contains(t, errOut, "the missing values found in the LULC raster but not the table are: 3")
}

func TestValidate_PrintsIssues(t *testing.T) {
	cfg := writeInputs(t, "do_valuation: true\nlulc_bas_year: 2020\nlulc_alt_year: 2010\n")

	code, out, _ := runCLI(t, "validate", "--config", cfg)
	require.Equal(t, ExitConfigError, code)

	var issues []config.Issue
	require.NoError(t, json.Unmarshal([]byte(out), &issues))
	require.NotEmpty(t, issues)
	require.Equal(t, config.MsgMissingKey, issues[0].Message)
	require.Contains(t, issues[0].Keys, "price_per_metric_ton_of_c")
}

func TestValidate_LimitTo(t *testing.T) {
	cfg := writeInputs(t, "do_valuation: true\nlulc_bas_year: 2020\nlulc_alt_year: 2010\n")

	code, out, _ := runCLI(t, "validate", "--config", cfg, "--limit-to", "lulc_alt_year")
	require.Equal(t, ExitConfigError, code)

	var issues []config.Issue
	require.NoError(t, json.Unmarshal([]byte(out), &issues))
	require.Len(t, issues, 1)
	require.Equal(t, []string{"lulc_alt_year"}, issues[0].Keys)
}

func TestValidate_Clean(t *testing.T) {
	cfg := writeInputs(t, "")

	code, out, errOut := runCLI(t, "validate", "--config", cfg)
	require.Equal(t, ExitSuccess, code, errOut)
	require.JSONEq(t, "[]", out)
}

func TestRun_StorageIgnoresYearOrder(t *testing.T) {
	cfg := writeInputs(t, "do_valuation: false\nlulc_bas_year: 2030\nlulc_alt_year: 2020\n")

	code, out, errOut := runCLI(t, "run", "--config", cfg)
	require.Equal(t, ExitSuccess, code, errOut)
	require.Contains(t, out, "Carbon model finished")
}

func TestValidate_UnknownLimitKey(t *testing.T) {
	code, _, _ := runCLI(t, "validate", "--config", writeInputs(t, ""), "--limit-to", "nope")
	require.Equal(t, ExitInvalidInvocation, code)
}

func TestExitCode(t *testing.T) {
	require.Equal(t, ExitSuccess, ExitCode(nil))
	require.Equal(t, ExitConfigError, ExitCode(&carbon.ConfigError{Msg: "x"}))
	require.Equal(t, ExitConfigError, ExitCode(&carbon.GeometryError{Msg: "x"}))
	require.Equal(t, ExitInternalError, ExitCode(os.ErrPermission))
	require.Equal(t, ExitInvalidInvocation, ExitCode(&InvocationError{Message: "x"}))
}

func TestHistory(t *testing.T) {
	cfg := writeInputs(t, "")
	dir := filepath.Dir(cfg)
	info, err := raster.ReadInfo(filepath.Join(dir, "bas.tif"))
	require.NoError(t, err)
	require.NoError(t, raster.Write(filepath.Join(dir, "bas.tif"), info, []float64{1, 3, 1, 1}))

	code, _, _ := runCLI(t, "run", "--config", cfg)
	require.Equal(t, ExitGraphFailure, code)

	require.NoError(t, raster.Write(filepath.Join(dir, "bas.tif"), info, []float64{1, 1, 1, 1}))
	code, out, errOut := runCLI(t, "run", "--config", cfg)
	require.Equal(t, ExitSuccess, code, errOut)
	require.Contains(t, out, "Retry 1 of failed run")

	code, out, errOut = runCLI(t, "history", "--workspace", filepath.Join(dir, "ws"))
	require.Equal(t, ExitSuccess, code, errOut)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "failed")
	require.Contains(t, lines[0], "MissingLULCCode in "+carbon.MapTaskName(carbon.PoolAbove, carbon.Baseline))
	require.Contains(t, lines[1], "succeeded")
	require.Contains(t, lines[1], "retry 1")
}

func TestHistory_Empty(t *testing.T) {
	code, out, _ := runCLI(t, "history", "--workspace", t.TempDir())
	require.Equal(t, ExitSuccess, code)
	require.Equal(t, "No runs recorded\n", out)
}
