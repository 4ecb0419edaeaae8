// Package dag is the dependency-graph engine that schedules pipeline tasks.
//
// It is split into:
//   - Immutable graph definition (TaskGraph): tasks, dependency edges, stable GraphHash
//   - Mutable execution state (ExecutionState) driven by a validated state machine
//   - Executor: serial or bounded-parallel execution honoring every edge
//
// A graph is validated acyclic on construction, so any executor can rely on a
// topological order existing. The graph identity is computed from task
// definitions and canonicalized edges, making it invariant to insertion order.
package dag
