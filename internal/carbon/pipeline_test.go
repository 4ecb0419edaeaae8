package carbon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"carbonweaver/internal/config"
	"carbonweaver/internal/dag"
	"carbonweaver/internal/metrics"
	"carbonweaver/internal/runlog"
	"carbonweaver/internal/trace"
)

const poolsCSV = "lucode,lulc_name,c_above,c_below,c_soil,c_dead\n" +
	"1,forest,40,30,20,10\n" +
	"2,bare,0,0,0,0\n"

var fixedNow = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }

type fixture struct {
	inputs string
	args   config.Args
}

// newFixture lays out a 2x2 grid of 100 m pixels, all forest, and a pool
// table with 100 Mg/ha of total carbon for forest.
func newFixture(t *testing.T) fixture {
	t.Helper()
	inputs := t.TempDir()
	all := []float64{1, 1, 1, 1}
	args := config.DefaultArgs()
	args.WorkspaceDir = filepath.Join(t.TempDir(), "ws")
	args.LULCBasPath = writeRaster(t, filepath.Join(inputs, "bas.tif"), lulcInfo(2, 2, 100), all)
	args.CarbonPoolsPath = writeFile(t, filepath.Join(inputs, "pools.csv"), poolsCSV)
	return fixture{inputs: inputs, args: args}
}

func (f fixture) withAlternate(t *testing.T, vals ...float64) fixture {
	t.Helper()
	if len(vals) == 0 {
		vals = []float64{1, 1, 1, 1}
	}
	f.args.CalcSequestration = true
	f.args.LULCAltPath = writeRaster(t, filepath.Join(f.inputs, "alt.tif"), lulcInfo(2, 2, 100), vals)
	return f
}

func (f fixture) withValuation() fixture {
	f.args.DoValuation = true
	f.args.LULCBasYear = 2020
	f.args.LULCAltYear = 2030
	f.args.PricePerMetricTonOfC = 43
	f.args.DiscountRate = 7
	return f
}

func run(t *testing.T, args config.Args) *Result {
	t.Helper()
	res, err := Execute(context.Background(), args, Options{Now: fixedNow})
	require.NoError(t, err)
	return res
}

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if rel == TaskCacheDirName {
			return filepath.SkipDir
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

func rasterBytes(t *testing.T, root string) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	for _, rel := range listTree(t, root) {
		if filepath.Ext(rel) != ".tif" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, rel))
		require.NoError(t, err)
		out[rel] = data
	}
	return out
}

func summaryValues(rows []SummaryRow) map[string]float64 {
	out := map[string]float64{}
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out
}

func TestExecute_BaselineOnly(t *testing.T) {
	f := newFixture(t)
	res := run(t, f.args)

	ws := res.Registry.Workspace()
	require.Equal(t, []string{
		"intermediate_outputs",
		"intermediate_outputs/c_above_bas.tif",
		"intermediate_outputs/c_below_bas.tif",
		"intermediate_outputs/c_dead_bas.tif",
		"intermediate_outputs/c_soil_bas.tif",
		"report.html",
		"tot_c_bas.tif",
	}, listTree(t, ws))
	require.FileExists(t, filepath.Join(ws, TaskCacheDirName, metrics.TextfileName))

	require.Equal(t, []Scenario{Baseline}, res.Scenarios)
	require.Nil(t, res.ValuationConstant)
	require.Len(t, res.Summary, 1)
	require.Equal(t, KeyTotalBas, res.Summary[0].Key)
	require.Equal(t, 400.0, res.Summary[0].Value)
	require.Equal(t, 6, res.Graph.Count(dag.TaskCompleted))

	_, vals := readValues(t, res.Registry.Path(KeyTotalBas))
	require.Equal(t, []float64{100, 100, 100, 100}, vals)

	report, err := os.ReadFile(res.Registry.Path(KeyHTMLReport))
	require.NoError(t, err)
	require.Contains(t, string(report), "400.00")
	require.Contains(t, string(report), "2024-03-01 09:30")
	require.NotContains(t, string(report), "Total alt")
}

func TestExecute_FullValuation(t *testing.T) {
	f := newFixture(t).withAlternate(t).withValuation()
	res := run(t, f.args)

	require.Equal(t, map[string]float64{
		KeyTotalBas: 400,
		KeyTotalAlt: 400,
		KeyDelta:    0,
		KeyNPV:      0,
	}, summaryValues(res.Summary))
	require.NotNil(t, res.ValuationConstant)
	require.InDelta(t, ValuationConstant(2020, 2030, 7, 0, 43), *res.ValuationConstant, 1e-12)
	require.Equal(t, 13, res.Graph.Count(dag.TaskCompleted))

	info, vals := readValues(t, res.Registry.Path(KeyNPV))
	require.Equal(t, SignedNodata, info.Nodata)
	require.Equal(t, []float64{0, 0, 0, 0}, vals)

	for _, key := range TempKeys {
		require.NoFileExists(t, res.Registry.Path(key))
	}
}

func TestExecute_Sequestration(t *testing.T) {
	f := newFixture(t).withAlternate(t, 1, 2, lulcNodata, 1)
	res := run(t, f.args)

	got := summaryValues(res.Summary)
	require.Equal(t, 400.0, got[KeyTotalBas])
	require.Equal(t, 200.0, got[KeyTotalAlt])
	require.Equal(t, -100.0, got[KeyDelta])
	_, hasNPV := got[KeyNPV]
	require.False(t, hasNPV)

	_, vals := readValues(t, res.Registry.Path(KeyDelta))
	require.Equal(t, []float64{0, -100, SignedNodata, 0}, vals)
}

func TestExecute_ValuationWithoutAlternate(t *testing.T) {
	f := newFixture(t).withValuation()
	res := run(t, f.args)

	require.NotNil(t, res.ValuationConstant)
	require.NoFileExists(t, res.Registry.Path(KeyNPV))
	require.Len(t, res.Summary, 1)
}

func TestExecute_RerunIsCached(t *testing.T) {
	f := newFixture(t).withAlternate(t).withValuation()
	first := run(t, f.args)
	before := rasterBytes(t, first.Registry.Workspace())

	second := run(t, f.args)
	require.Equal(t, 13, second.Graph.Count(dag.TaskCached))
	require.Empty(t, second.Graph.ExecutionOrder)
	require.Equal(t, before, rasterBytes(t, second.Registry.Workspace()))
	require.Equal(t, first.Summary, second.Summary)
}

func TestExecute_RerunsOnlyStaleTask(t *testing.T) {
	f := newFixture(t).withAlternate(t)
	first := run(t, f.args)
	require.NoError(t, os.Remove(first.Registry.Path(PoolKey(PoolSoil, Baseline))))

	second := run(t, f.args)
	require.Equal(t, []string{MapTaskName(PoolSoil, Baseline)}, second.Graph.ExecutionOrder)
}

func TestExecute_ParallelMatchesSerial(t *testing.T) {
	serial := newFixture(t).withAlternate(t, 2, 1, 1, 2).withValuation()
	parallel := newFixture(t).withAlternate(t, 2, 1, 1, 2).withValuation()
	parallel.args.NWorkers = 4

	a := run(t, serial.args)
	b := run(t, parallel.args)

	require.Equal(t, a.Graph.ExecutionOrder, b.Graph.ExecutionOrder)
	require.Equal(t, summaryValues(a.Summary), summaryValues(b.Summary))
	require.Equal(t, decisions(a.Trace), decisions(b.Trace))
}

func decisions(tr trace.ExecutionTrace) map[string]trace.TraceEventKind {
	out := map[string]trace.TraceEventKind{}
	for _, e := range tr.Events {
		out[e.TaskID] = e.Kind
	}
	return out
}

func TestExecute_ResultsSuffix(t *testing.T) {
	f := newFixture(t)
	f.args.ResultsSuffix = "v1"
	res := run(t, f.args)

	require.FileExists(t, filepath.Join(res.Registry.Workspace(), "tot_c_bas_v1.tif"))
	require.FileExists(t, filepath.Join(res.Registry.Workspace(), "report_v1.html"))
}

func TestExecute_MissingCodeFailsTask(t *testing.T) {
	f := newFixture(t)
	f.args.LULCBasPath = writeRaster(t, filepath.Join(f.inputs, "bad.tif"), lulcInfo(2, 2, 100), []float64{1, 9, 1, 8})
	rec := trace.NewRecorder()

	res, err := Execute(context.Background(), f.args, Options{Now: fixedNow, Sink: rec})

	te, ok := dag.FirstTaskError(err)
	require.True(t, ok)
	require.Equal(t, MapTaskName(PoolAbove, Baseline), te.Task)
	var rerr *ReclassificationError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, []int64{8, 9}, rerr.Missing)

	require.NotNil(t, res)
	require.Equal(t, dag.TaskSkipped, res.Graph.FinalState[TaskReport])
	require.Equal(t, dag.TaskSkipped, res.Graph.FinalState[SumTaskName(Baseline)])
	require.Equal(t, 4, res.Graph.Count(dag.TaskFailed))
	require.NoFileExists(t, res.Registry.Path(KeyHTMLReport))
	require.Len(t, rec.Snapshot(), 6)
}

func TestExecute_YearOrder(t *testing.T) {
	f := newFixture(t).withAlternate(t).withValuation()
	f.args.LULCAltYear = f.args.LULCBasYear

	_, err := Execute(context.Background(), f.args, Options{})
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, []string{"lulc_bas_year", "lulc_alt_year"}, cerr.Keys)
	require.Contains(t, err.Error(), "must be greater than the Baseline LULC Year (2020)")
}

func TestExecute_GeometryMismatch(t *testing.T) {
	t.Run("dimensions", func(t *testing.T) {
		f := newFixture(t)
		f.args.LULCAltPath = writeRaster(t, filepath.Join(f.inputs, "alt.tif"), lulcInfo(3, 2, 100), []float64{1, 1, 1, 1, 1, 1})

		_, err := Execute(context.Background(), f.args, Options{})
		var gerr *GeometryError
		require.True(t, errors.As(err, &gerr))
		require.Contains(t, err.Error(), "raster dimensions")
		require.Contains(t, err.Error(), "(2, 2)")
		require.Contains(t, err.Error(), "(3, 2)")
	})
	t.Run("pixel size", func(t *testing.T) {
		f := newFixture(t)
		f.args.LULCAltPath = writeRaster(t, filepath.Join(f.inputs, "alt.tif"), lulcInfo(2, 2, 30), []float64{1, 1, 1, 1})

		_, err := Execute(context.Background(), f.args, Options{})
		var gerr *GeometryError
		require.True(t, errors.As(err, &gerr))
		require.Contains(t, err.Error(), "pixel sizes")
	})
}

func TestExecute_RequiresBaseline(t *testing.T) {
	f := newFixture(t)
	f.args.LULCBasPath = ""

	_, err := Execute(context.Background(), f.args, Options{})
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, []string{"lulc_bas_path"}, cerr.Keys)
}

func TestExecute_RecordsRuns(t *testing.T) {
	f := newFixture(t)
	good := f.args.LULCBasPath
	f.args.LULCBasPath = writeRaster(t, filepath.Join(f.inputs, "edit.tif"), lulcInfo(2, 2, 100), []float64{1, 5, 1, 1})

	clock := tickingClock()
	execute := func() (*Result, error) {
		return Execute(context.Background(), f.args, Options{Now: clock})
	}

	failed, err := execute()
	require.Error(t, err)
	require.Equal(t, runlog.StatusFailed, failed.Run.Status)
	require.Nil(t, failed.Run.PreviousRunID)
	require.Equal(t, 4, failed.Run.Tasks[string(dag.TaskFailed)])

	store, err := runlog.NewStore(failed.Registry.TaskCacheDir())
	require.NoError(t, err)
	rec, err := store.LoadFailure(failed.RunID)
	require.NoError(t, err)
	require.Equal(t, runlog.FailureClassExecution, rec.FailureClass)
	require.Equal(t, "MissingLULCCode", rec.ErrorCode)
	require.Equal(t, MapTaskName(PoolAbove, Baseline), *rec.Task)

	data, err := os.ReadFile(good)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.args.LULCBasPath, data, 0o644))

	retry, err := execute()
	require.NoError(t, err)
	require.Equal(t, runlog.StatusSucceeded, retry.Run.Status)
	require.NotNil(t, retry.Run.PreviousRunID)
	require.Equal(t, failed.RunID, *retry.Run.PreviousRunID)
	require.Equal(t, 1, retry.Run.RetryCount)

	again, err := execute()
	require.NoError(t, err)
	require.Nil(t, again.Run.PreviousRunID)
	require.Zero(t, again.Run.RetryCount)
}

func tickingClock() func() time.Time {
	var n int
	return func() time.Time {
		n++
		return fixedNow().Add(time.Duration(n) * time.Second)
	}
}

func TestExecute_RunLogUsesClock(t *testing.T) {
	f := newFixture(t)
	res := run(t, f.args)

	require.Equal(t, fixedNow(), res.Run.StartTime)
	require.NotNil(t, res.Run.FinishTime)
	require.Equal(t, fixedNow(), *res.Run.FinishTime)
}

func TestExecute_PersistsTrace(t *testing.T) {
	f := newFixture(t)
	res := run(t, f.args)

	want, err := res.Trace.Hash()
	require.NoError(t, err)
	require.Equal(t, want, res.Run.TraceHash)

	store, err := runlog.NewStore(res.Registry.TaskCacheDir())
	require.NoError(t, err)
	loaded, err := store.LoadRun(res.RunID)
	require.NoError(t, err)
	require.Equal(t, want, loaded.TraceHash)

	got, err := store.LoadTrace(res.RunID)
	require.NoError(t, err)
	require.Equal(t, res.Trace.GraphHash, got.GraphHash)
	require.Equal(t, decisions(res.Trace), decisions(got))

	onDisk, err := os.ReadFile(filepath.Join(res.Registry.TaskCacheDir(), runlog.RunsDirName, res.RunID, "trace.json"))
	require.NoError(t, err)
	canon, err := res.Trace.CanonicalJSON()
	require.NoError(t, err)
	require.Equal(t, canon, onDisk)

	rerun := run(t, f.args)
	require.NotEqual(t, res.Run.TraceHash, rerun.Run.TraceHash)
}
