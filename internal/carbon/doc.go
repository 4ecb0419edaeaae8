// Package carbon computes carbon storage, sequestration and net present
// value from land-use/land-cover rasters.
//
// A run maps every LULC scenario through the four carbon pools, sums the
// pools into per-scenario totals, differences the totals, scales the
// difference by a valuation constant and summarizes the results in an HTML
// report. Each step is a task in a dag.TaskGraph, so unchanged steps are
// satisfied from the task cache on a re-run.
package carbon
