package dag

import "carbonweaver/internal/core"

// GraphResult is the deterministic summary of a graph execution attempt.
type GraphResult struct {
	GraphHash GraphHash

	// FinalState is the terminal state of each node by name.
	FinalState ExecutionState

	// ExecutionOrder is the ordered list of tasks that were started (transitioned to RUNNING).
	ExecutionOrder []string

	// TaskHashes records the per-node TaskHash of executed and cached nodes.
	TaskHashes map[string]core.TaskHash

	// Failures maps a FAILED task name to its *TaskError.
	Failures map[string]error
}

// Count returns how many nodes finished in state s.
func (r *GraphResult) Count(s TaskState) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, st := range r.FinalState {
		if st == s {
			n++
		}
	}
	return n
}
