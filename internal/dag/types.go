package dag

import "carbonweaver/internal/core"

// GraphHash is the deterministic identity of a TaskGraph.
//
// It is computed solely from task definition content and dependency structure
// and is stable across different insertion orders of tasks and edges.
type GraphHash string

// TaskDefHash is the identity of a task definition within the graph.
//
// It differs from core.TaskHash: it covers the declared fields only and never
// reads input files, so it is available before any task has run.
type TaskDefHash string

// Edge represents a dependency relation: To depends on From.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// TaskNode is an immutable node in the TaskGraph.
type TaskNode struct {
	Name           string
	Task           core.Task
	DefinitionHash TaskDefHash
	canonicalIndex int
}

// CanonicalIndex returns the node's deterministic position in the graph's canonical ordering.
func (n *TaskNode) CanonicalIndex() int { return n.canonicalIndex }

func (h GraphHash) String() string { return string(h) }

func (h TaskDefHash) String() string { return string(h) }
