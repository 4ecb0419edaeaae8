package carbon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbonweaver/internal/config"
	"carbonweaver/internal/core"
	"carbonweaver/internal/dag"
	"carbonweaver/internal/logging"
	"carbonweaver/internal/metrics"
	"carbonweaver/internal/raster"
	"carbonweaver/internal/runlog"
	"carbonweaver/internal/trace"
)

// Scenario is a land cover configuration.
type Scenario string

const (
	Baseline  Scenario = "bas"
	Alternate Scenario = "alt"
)

// Task operation names.
const (
	OpReclassify = "reclassify"
	OpSum        = "raster_sum"
	OpSubtract   = "raster_subtract"
	OpScale      = "raster_scale"
	OpReport     = "report"
)

// Task names that do not depend on the scenario.
const (
	TaskDiff   = "diff_rasters_for_" + KeyDelta
	TaskNPV    = "calculate_" + KeyNPV
	TaskReport = "generate_report"
)

// MapTaskName is the name of the task mapping one pool for one scenario.
func MapTaskName(p Pool, s Scenario) string { return "carbon_map_" + PoolKey(p, s) }

// SumTaskName is the name of the task totalling one scenario.
func SumTaskName(s Scenario) string { return "sum_rasters_for_total_c_" + TotalKey(s) }

// Options carries the collaborators of a run. The zero value is usable.
type Options struct {
	Logger *zap.Logger

	// Cache overrides the SQLite task cache in the workspace.
	Cache core.Cache

	// Sink receives executor events in addition to the built-in sinks.
	Sink trace.Sink

	// Now stamps the report and the run log. Defaults to time.Now.
	Now func() time.Time

	// RunID labels logs and metrics. Defaults to a random UUID.
	RunID string
}

// Result describes a finished run.
type Result struct {
	RunID     string
	Registry  *Registry
	Scenarios []Scenario

	// ValuationConstant is set when valuation was requested.
	ValuationConstant *float64

	Graph   *dag.GraphResult
	Trace   trace.ExecutionTrace
	Summary []SummaryRow

	// Run is this attempt's run log record.
	Run runlog.Run
}

// Execute runs the carbon model described by args.
//
// Input errors (*ConfigError, *GeometryError) are returned before any task
// runs. A task failure is returned as a *dag.TaskError alongside the partial
// Result; the first failure in execution order wins.
func Execute(ctx context.Context, args config.Args, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log = log.With(zap.String("run_id", runID))

	if strings.TrimSpace(args.WorkspaceDir) == "" {
		return nil, &ConfigError{Keys: []string{"workspace_dir"}, Msg: "a workspace directory is required"}
	}
	workspace, err := filepath.Abs(args.WorkspaceDir)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}

	log.Info("Building file registry", zap.String("workspace", workspace))
	reg := NewRegistry(workspace, args.ResultsSuffix)
	for _, dir := range []string{workspace, reg.IntermediateDir(), reg.TaskCacheDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating workspace: %w", err)
		}
	}

	if args.DoValuation && args.LULCBasYear >= args.LULCAltYear {
		return nil, &ConfigError{
			Keys: []string{"lulc_bas_year", "lulc_alt_year"},
			Msg: fmt.Sprintf("The Alternate LULC Year (%d) must be greater than the Baseline LULC Year (%d). "+
				"Ensure that the Baseline LULC Year is earlier than the Alternate LULC Year.",
				args.LULCAltYear, args.LULCBasYear),
		}
	}

	lulc, err := scenarioInputs(args)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.CarbonPoolsPath) == "" {
		return nil, &ConfigError{Keys: []string{"carbon_pools_path"}, Msg: "a carbon pools table is required"}
	}
	poolsPath, err := filepath.Abs(args.CarbonPoolsPath)
	if err != nil {
		return nil, fmt.Errorf("resolving carbon pools table: %w", err)
	}
	table, err := LoadPoolTable(poolsPath)
	if err != nil {
		return nil, err
	}
	if err := checkGeometry(lulc); err != nil {
		return nil, err
	}

	res := &Result{RunID: runID, Registry: reg}
	for _, in := range lulc {
		res.Scenarios = append(res.Scenarios, in.scenario)
	}

	p := &plan{}
	var summarize []string

	log.Info("Map all carbon pools to carbon storage rasters.")
	for _, in := range lulc {
		var poolPaths []string
		var mapTasks []string
		for _, pool := range Pools {
			key := PoolKey(pool, in.scenario)
			log.Info("Mapping carbon from LULC to pool raster", zap.String("lulc_key", in.key), zap.String("storage_key", key))
			mapTasks = append(mapTasks, p.add(mapTask(pool, in, poolsPath, table.Mapping(pool), reg.Path(key))))
			poolPaths = append(poolPaths, reg.Path(key))
		}

		key := TotalKey(in.scenario)
		log.Info("Calculate carbon storage", zap.String("output_key", key))
		p.add(reduceTask(SumTaskName(in.scenario), OpSum, poolPaths, reg.Path(key), SumOp, floatPtr(CarbonNodata), nil), mapTasks...)
		summarize = append(summarize, key)
	}

	hasAlt := len(lulc) > 1
	if hasAlt {
		log.Info("Calculate sequestration scenario", zap.String("output_key", KeyDelta))
		p.add(
			reduceTask(TaskDiff, OpSubtract, []string{reg.Path(KeyTotalAlt), reg.Path(KeyTotalBas)},
				reg.Path(KeyDelta), SubtractOp, floatPtr(SignedNodata), nil),
			SumTaskName(Baseline), SumTaskName(Alternate),
		)
		summarize = append(summarize, KeyDelta)
	}

	if args.DoValuation {
		log.Info("Constructing valuation formula.")
		c := ValuationConstant(args.LULCBasYear, args.LULCAltYear, args.DiscountRate, args.RateChange, args.PricePerMetricTonOfC)
		res.ValuationConstant = &c
		if hasAlt {
			log.Info("Calculating NPV for scenario 'alt'", zap.Float64("valuation_constant", c))
			p.add(
				reduceTask(TaskNPV, OpScale, []string{reg.Path(KeyDelta)}, reg.Path(KeyNPV), ScaleOp(c), nil,
					map[string]string{"constant": formatFloat(c)}),
				TaskDiff,
			)
			summarize = append(summarize, KeyNPV)
		}
	}

	terminal := []string{SumTaskName(Baseline)}
	if hasAlt {
		terminal = append(terminal, SumTaskName(Alternate), TaskDiff)
		if res.ValuationConstant != nil {
			terminal = append(terminal, TaskNPV)
		}
	}
	p.add(reportTask(args, reg, summarize, now), terminal...)

	graph, err := dag.NewTaskGraph(p.tasks, p.edges)
	if err != nil {
		return nil, fmt.Errorf("building task graph: %w", err)
	}

	cache := opts.Cache
	if cache == nil {
		sq, err := core.OpenSQLiteCache(reg.TaskCacheDir())
		if err != nil {
			return nil, err
		}
		defer sq.Close()
		cache = sq
	}
	runner, err := dag.NewCacheAwareRunner(core.NewRunner(workspace, cache))
	if err != nil {
		return nil, err
	}
	ex, err := dag.NewExecutor(graph, runner)
	if err != nil {
		return nil, err
	}
	rec := trace.NewRecorder()
	taskMetrics := metrics.New(runID)
	ex.Sink = trace.Multi{rec, logging.TraceSink{Logger: log}, taskMetrics, opts.Sink}

	runs := startLedger(reg.TaskCacheDir(), graph.Hash().String(), runID, now, log)

	var runErr error
	if args.NWorkers < 0 {
		log.Info("Executing task graph serially", zap.Int("tasks", graph.Len()))
		res.Graph, runErr = ex.RunSerial(ctx)
	} else {
		workers := max(1, args.NWorkers)
		log.Info("Executing task graph", zap.Int("tasks", graph.Len()), zap.Int("workers", workers))
		res.Graph, runErr = ex.RunParallel(ctx, workers)
	}
	res.Trace = rec.Trace(graph.Hash().String())

	if err := taskMetrics.WriteTextfile(filepath.Join(reg.TaskCacheDir(), metrics.TextfileName)); err != nil {
		log.Warn("Can't write task metrics", zap.Error(err))
	}
	removeTemporaries(reg, log)

	if runErr == nil {
		res.Summary, runErr = Summarize(reg, summarize)
	}
	runs.finish(res.Graph, res.Trace, runErr)
	res.Run = runs.run
	if runErr != nil {
		return res, runErr
	}
	log.Info("Carbon model finished",
		zap.Int("executed", res.Graph.Count(dag.TaskCompleted)),
		zap.Int("cached", res.Graph.Count(dag.TaskCached)))
	return res, nil
}

// plan accumulates task declarations and their dependency edges.
type plan struct {
	tasks []core.Task
	edges []dag.Edge
}

func (p *plan) add(t core.Task, deps ...string) string {
	p.tasks = append(p.tasks, t)
	for _, d := range deps {
		p.edges = append(p.edges, dag.Edge{From: d, To: t.Name})
	}
	return t.Name
}

type scenarioInput struct {
	scenario Scenario
	key      string
	path     string
}

// scenarioInputs returns the active scenarios, baseline first.
func scenarioInputs(args config.Args) ([]scenarioInput, error) {
	candidates := []scenarioInput{{Baseline, "lulc_bas_path", args.LULCBasPath}}
	if args.HasAlternate() {
		candidates = append(candidates, scenarioInput{Alternate, "lulc_alt_path", args.LULCAltPath})
	}
	var out []scenarioInput
	for _, c := range candidates {
		if strings.TrimSpace(c.path) == "" {
			continue
		}
		abs, err := filepath.Abs(c.path)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", c.key, err)
		}
		c.path = abs
		out = append(out, c)
	}
	if len(out) == 0 || out[0].scenario != Baseline {
		return nil, &ConfigError{Keys: []string{"lulc_bas_path"}, Msg: "a baseline LULC raster is required"}
	}
	return out, nil
}

// checkGeometry requires every scenario raster to share pixel size and dimensions.
func checkGeometry(lulc []scenarioInput) error {
	keys := make([]string, 0, len(lulc))
	pixelSizes := map[string]bool{}
	rasterSizes := map[string]bool{}
	for _, in := range lulc {
		info, err := raster.ReadInfo(in.path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", in.key, err)
		}
		keys = append(keys, in.key)
		pixelSizes[fmt.Sprintf("(%g, %g)", info.PixelSize[0], info.PixelSize[1])] = true
		rasterSizes[fmt.Sprintf("(%d, %d)", info.Width, info.Height)] = true
	}
	if len(pixelSizes) > 1 {
		return &GeometryError{Keys: keys, Msg: fmt.Sprintf(
			"the pixel sizes of %v are not equivalent. Here are the different sets that were found in processing: %s",
			keys, setString(pixelSizes))}
	}
	if len(rasterSizes) > 1 {
		return &GeometryError{Keys: keys, Msg: fmt.Sprintf(
			"the raster dimensions of %v are not equivalent. Here are the different sizes that were found in processing: %s",
			keys, setString(rasterSizes))}
	}
	return nil
}

func setString(set map[string]bool) string {
	vals := make([]string, 0, len(set))
	for v := range set {
		vals = append(vals, v)
	}
	sort.Strings(vals)
	return "{" + strings.Join(vals, ", ") + "}"
}

func mapTask(pool Pool, in scenarioInput, poolsPath string, mapping map[int64]float64, out string) core.Task {
	lulcPath := in.path
	return core.Task{
		Name: MapTaskName(pool, in.scenario),
		Op:   OpReclassify,
		Params: map[string]string{
			"pool":   string(pool),
			"column": LucodeColumn,
			"nodata": formatFloat(CarbonNodata),
		},
		Inputs:  []string{lulcPath, poolsPath},
		Outputs: []string{out},
		Func: func(context.Context) error {
			return MapCarbon(lulcPath, mapping, out)
		},
	}
}

// reduceTask declares a Reduce over inputs. Input order is recorded in the
// params because the task hash treats inputs as a set.
func reduceTask(name, op string, inputs []string, out string, fn ReduceOp, nodata *float64, extra map[string]string) core.Task {
	params := map[string]string{"order": strings.Join(inputs, "\x00")}
	if nodata != nil {
		params["target_nodata"] = formatFloat(*nodata)
	}
	for k, v := range extra {
		params[k] = v
	}
	return core.Task{
		Name:    name,
		Op:      op,
		Params:  params,
		Inputs:  inputs,
		Outputs: []string{out},
		Func: func(context.Context) error {
			return Reduce(inputs, fn, out, nodata)
		},
	}
}

func reportTask(args config.Args, reg *Registry, summarize []string, now func() time.Time) core.Task {
	params := map[string]string{}
	for k, v := range args.Fields() {
		params["arg."+k] = fmt.Sprint(v)
	}
	inputs := make([]string, 0, len(summarize))
	for _, k := range summarize {
		inputs = append(inputs, reg.Path(k))
	}
	out := reg.Path(KeyHTMLReport)
	return core.Task{
		Name:    TaskReport,
		Op:      OpReport,
		Params:  params,
		Inputs:  inputs,
		Outputs: []string{out},
		Func: func(context.Context) error {
			rows, err := Summarize(reg, summarize)
			if err != nil {
				return err
			}
			return WriteReport(out, args, rows, now())
		},
	}
}

// removeTemporaries deletes the run's temporary files. Failures are logged.
func removeTemporaries(reg *Registry, log *zap.Logger) {
	for _, k := range TempKeys {
		path := reg.Path(k)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("Can't remove temporary file", zap.String("path", path), zap.Error(err))
		}
	}
}

func floatPtr(v float64) *float64 { return &v }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
