package dag

import (
	"container/heap"
)

// validateAcyclic proves the graph has no cycles using Kahn's algorithm.
//
// If a cycle exists, one cycle path is extracted deterministically for the error.
func (g *TaskGraph) validateAcyclic() error {
	if len(g.topoOrderIndices()) == len(g.nodes) {
		return nil
	}
	return cycleError(g.findCycle())
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// topoOrderIndices returns a topological ordering of node indices.
// The ready queue is a min-heap by canonical index.
func (g *TaskGraph) topoOrderIndices() []int {
	indeg := append([]int(nil), g.indeg...)

	ready := &intMinHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// findCycle runs a DFS over canonical indices and returns the first cycle it
// closes, as names in edge direction with the first node repeated at the end.
func (g *TaskGraph) findCycle() []string {
	const (
		unvisited = iota
		onStack
		done
	)
	mark := make([]int, len(g.nodes))
	var stack []int
	var cycle []int

	var visit func(u int) bool
	visit = func(u int) bool {
		mark[u] = onStack
		stack = append(stack, u)
		for _, v := range g.outgoing[u] {
			switch mark[v] {
			case unvisited:
				if visit(v) {
					return true
				}
			case onStack:
				// stack holds the path root..u; the cycle starts where v sits.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == v {
						cycle = append(append(cycle, stack[i:]...), v)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		mark[u] = done
		return false
	}

	for i := range g.nodes {
		if mark[i] == unvisited && visit(i) {
			break
		}
	}

	names := make([]string, 0, len(cycle))
	for _, idx := range cycle {
		names = append(names, g.nodes[idx].Name)
	}
	return names
}
