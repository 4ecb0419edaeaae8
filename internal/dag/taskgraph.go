package dag

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"

	"carbonweaver/internal/core"
)

type edgeIndex struct {
	from int
	to   int
}

// TaskGraph is an immutable, validated DAG definition.
//
// It is safe for concurrent read access.
type TaskGraph struct {
	nodesByName map[string]*TaskNode
	nodes       []*TaskNode // canonical order

	edges []edgeIndex // sorted

	outgoing [][]int // by canonical index, sorted ascending
	incoming [][]int // by canonical index, sorted ascending
	indeg    []int
	depth    []int // longest path from any root

	hash GraphHash
}

// NewTaskGraph builds and validates a TaskGraph.
//
// Validation runs immediately and rejects:
//   - empty or duplicate task names
//   - two tasks declaring the same output path
//   - edges referencing unknown tasks
//   - duplicate edges and self-loops
//   - any cycle (direct or indirect)
func NewTaskGraph(tasks []core.Task, edges []Edge) (*TaskGraph, error) {
	if len(tasks) == 0 {
		return nil, invalidf("no tasks")
	}

	nodesByName := make(map[string]*TaskNode, len(tasks))
	nodes := make([]*TaskNode, 0, len(tasks))
	owners := make(map[string]string)

	for _, t := range tasks {
		if t.Name == "" {
			return nil, invalidf("task name is required")
		}
		if _, exists := nodesByName[t.Name]; exists {
			return nil, invalidf("duplicate task name: %q", t.Name)
		}
		for _, out := range t.Outputs {
			if prev, taken := owners[out]; taken {
				return nil, invalidf("tasks %q and %q both target %q", prev, t.Name, out)
			}
			owners[out] = t.Name
		}

		node := &TaskNode{Name: t.Name, Task: t, DefinitionHash: computeTaskDefHash(t)}
		nodesByName[t.Name] = node
		nodes = append(nodes, node)
	}

	// Canonical order: definition hash, then name as a stable tie-breaker.
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].DefinitionHash != nodes[j].DefinitionHash {
			return nodes[i].DefinitionHash < nodes[j].DefinitionHash
		}
		return nodes[i].Name < nodes[j].Name
	})
	for i, n := range nodes {
		n.canonicalIndex = i
	}

	mapped := make([]edgeIndex, 0, len(edges))
	seen := make(map[edgeIndex]struct{}, len(edges))
	for _, e := range edges {
		from, okFrom := nodesByName[e.From]
		if !okFrom {
			return nil, invalidf("edge references unknown task (from): %q", e.From)
		}
		to, okTo := nodesByName[e.To]
		if !okTo {
			return nil, invalidf("edge references unknown task (to): %q", e.To)
		}
		if from == to {
			return nil, invalidf("self-loop: %q -> %q", e.From, e.To)
		}
		pair := edgeIndex{from: from.canonicalIndex, to: to.canonicalIndex}
		if _, dup := seen[pair]; dup {
			return nil, invalidf("duplicate edge: %q -> %q", e.From, e.To)
		}
		seen[pair] = struct{}{}
		mapped = append(mapped, pair)
	}
	sort.Slice(mapped, func(i, j int) bool {
		if mapped[i].from != mapped[j].from {
			return mapped[i].from < mapped[j].from
		}
		return mapped[i].to < mapped[j].to
	})

	g := &TaskGraph{
		nodesByName: nodesByName,
		nodes:       nodes,
		edges:       mapped,
		outgoing:    make([][]int, len(nodes)),
		incoming:    make([][]int, len(nodes)),
		indeg:       make([]int, len(nodes)),
	}
	// mapped is sorted by (from, to), so both adjacency lists come out sorted.
	for _, e := range mapped {
		g.outgoing[e.from] = append(g.outgoing[e.from], e.to)
		g.incoming[e.to] = append(g.incoming[e.to], e.from)
		g.indeg[e.to]++
	}
	for i := range g.incoming {
		sort.Ints(g.incoming[i])
	}

	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}
	g.depth = g.computeDepth()
	g.hash = g.computeGraphHash()
	return g, nil
}

// Hash returns the stable identity for this graph.
func (g *TaskGraph) Hash() GraphHash { return g.hash }

// Len returns the number of tasks in the graph.
func (g *TaskGraph) Len() int { return len(g.nodes) }

// Node returns a node by name.
func (g *TaskGraph) Node(name string) (*TaskNode, bool) {
	n, ok := g.nodesByName[name]
	return n, ok
}

// Nodes returns the nodes in canonical order.
func (g *TaskGraph) Nodes() []*TaskNode {
	out := make([]*TaskNode, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the dependency edges as (From, To) name pairs in canonical order.
func (g *TaskGraph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, Edge{From: g.nodes[e.from].Name, To: g.nodes[e.to].Name})
	}
	return out
}

// Dependencies returns the sorted names of the tasks name depends on.
func (g *TaskGraph) Dependencies(name string) []string {
	n, ok := g.nodesByName[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.incoming[n.canonicalIndex]))
	for _, p := range g.incoming[n.canonicalIndex] {
		out = append(out, g.nodes[p].Name)
	}
	sort.Strings(out)
	return out
}

// Depth returns the topological depth of the given node name: the length of
// the longest path from any root to the node.
func (g *TaskGraph) Depth(name string) (int, bool) {
	n, ok := g.nodesByName[name]
	if !ok {
		return 0, false
	}
	return g.depth[n.canonicalIndex], true
}

// TopologicalOrder returns a deterministic topological ordering of task names.
func (g *TaskGraph) TopologicalOrder() []string {
	order := g.topoOrderIndices()
	names := make([]string, 0, len(order))
	for _, idx := range order {
		names = append(names, g.nodes[idx].Name)
	}
	return names
}

func (g *TaskGraph) computeDepth() []int {
	depth := make([]int, len(g.nodes))
	for _, u := range g.topoOrderIndices() {
		for _, p := range g.incoming[u] {
			if d := depth[p] + 1; d > depth[u] {
				depth[u] = d
			}
		}
	}
	return depth
}

func (g *TaskGraph) computeGraphHash() GraphHash {
	w := fieldWriter{h: sha256.New()}

	w.count(len(g.nodes))
	for _, n := range g.nodes {
		w.field([]byte(n.DefinitionHash))
	}
	w.count(len(g.edges))
	for _, e := range g.edges {
		w.count(e.from)
		w.count(e.to)
	}
	return GraphHash(hex.EncodeToString(w.h.Sum(nil)))
}

// computeTaskDefHash hashes the declarative fields of a task: op, params,
// inputs (as a set) and outputs (as a set). Name is excluded.
func computeTaskDefHash(t core.Task) TaskDefHash {
	w := fieldWriter{h: sha256.New()}

	w.field([]byte(t.Op))

	keys := make([]string, 0, len(t.Params))
	for k := range t.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w.count(len(keys))
	for _, k := range keys {
		w.field([]byte(k))
		w.field([]byte(t.Params[k]))
	}

	for _, list := range [][]string{t.Inputs, t.Outputs} {
		sorted := append([]string(nil), list...)
		sort.Strings(sorted)
		w.count(len(sorted))
		for _, s := range sorted {
			w.field([]byte(s))
		}
	}

	return TaskDefHash(hex.EncodeToString(w.h.Sum(nil)))
}

type fieldWriter struct {
	h hash.Hash
}

func (w fieldWriter) count(n int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	w.h.Write(b[:])
}

func (w fieldWriter) field(data []byte) {
	w.count(len(data))
	w.h.Write(data)
}
