package dag

import (
	"sort"
)

// ExecutionState maps task name to its current TaskState.
//
// It is a plain map so the scheduler can remain a pure function.
type ExecutionState map[string]TaskState

// GetReadyTasks returns the ordered list of task names that are eligible to run.
//
// A task is ready iff it is PENDING and every dependency is COMPLETED or
// CACHED. The list is sorted by (topological depth asc, task name asc).
// The function does not mutate graph or state.
func GetReadyTasks(g *TaskGraph, state ExecutionState) []string {
	if g == nil {
		return nil
	}

	var ready []string
	for _, node := range g.nodes {
		if state[node.Name] != TaskPending {
			continue
		}
		if g.dependenciesSucceeded(node.canonicalIndex, state) {
			ready = append(ready, node.Name)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		di, _ := g.Depth(ready[i])
		dj, _ := g.Depth(ready[j])
		if di != dj {
			return di < dj
		}
		return ready[i] < ready[j]
	})
	return ready
}

func (g *TaskGraph) dependenciesSucceeded(idx int, state ExecutionState) bool {
	for _, p := range g.incoming[idx] {
		if !IsSuccessful(state[g.nodes[p].Name]) {
			return false
		}
	}
	return true
}
