package carbon

import (
	"path/filepath"
	"strings"
)

// Registry keys for outputs, intermediates and temporaries.
const (
	KeyTotalBas   = "tot_c_bas"
	KeyTotalAlt   = "tot_c_alt"
	KeyDelta      = "delta_bas_alt"
	KeyNPV        = "npv_alt"
	KeyHTMLReport = "html_report"

	KeyAlignedBas = "aligned_lulc_bas_path"
	KeyAlignedAlt = "aligned_lulc_alt_path"
)

// IntermediateDirName is the workspace subdirectory for per-pool rasters.
const IntermediateDirName = "intermediate_outputs"

// TaskCacheDirName is the workspace subdirectory for the task cache.
const TaskCacheDirName = "taskgraph_cache"

var outputFiles = map[string]string{
	KeyTotalBas:   "tot_c_bas.tif",
	KeyTotalAlt:   "tot_c_alt.tif",
	KeyDelta:      "delta_bas_alt.tif",
	KeyNPV:        "npv_alt.tif",
	KeyHTMLReport: "report.html",
}

var tmpFiles = map[string]string{
	KeyAlignedBas: "aligned_lulc_bas.tif",
	KeyAlignedAlt: "aligned_lulc_alt.tif",
}

// TempKeys are the registry keys removed after a run.
var TempKeys = []string{KeyAlignedBas, KeyAlignedAlt}

// PoolKey is the registry key of the pool raster for one scenario, e.g. c_above_bas.
func PoolKey(p Pool, s Scenario) string { return string(p) + "_" + string(s) }

// TotalKey is the registry key of a scenario's total carbon raster.
func TotalKey(s Scenario) string { return "tot_c_" + string(s) }

// Registry maps logical file keys to the paths of one run. It is immutable.
type Registry struct {
	workspace string
	suffix    string
	paths     map[string]string
}

// NewRegistry lays out the files of a run in workspace. The suffix is
// normalized with Suffix and inserted before every file extension.
func NewRegistry(workspace, suffix string) *Registry {
	r := &Registry{workspace: workspace, suffix: Suffix(suffix), paths: map[string]string{}}
	for k, name := range outputFiles {
		r.paths[k] = filepath.Join(workspace, r.withSuffix(name))
	}
	for k, name := range tmpFiles {
		r.paths[k] = filepath.Join(workspace, r.withSuffix(name))
	}
	for _, s := range []Scenario{Baseline, Alternate} {
		for _, p := range Pools {
			k := PoolKey(p, s)
			r.paths[k] = filepath.Join(r.IntermediateDir(), r.withSuffix(k+".tif"))
		}
	}
	return r
}

// Suffix prefixes a non-empty results suffix with "_" unless it already has one.
func Suffix(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "_") {
		return s
	}
	return "_" + s
}

func (r *Registry) withSuffix(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + r.suffix + ext
}

// Path returns the path registered for key, or "" when key is unknown.
func (r *Registry) Path(key string) string { return r.paths[key] }

func (r *Registry) Workspace() string { return r.workspace }

func (r *Registry) IntermediateDir() string {
	return filepath.Join(r.workspace, IntermediateDirName)
}

func (r *Registry) TaskCacheDir() string {
	return filepath.Join(r.workspace, TaskCacheDirName)
}
