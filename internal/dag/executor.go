package dag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"carbonweaver/internal/core"
	"carbonweaver/internal/trace"
)

// TaskRunner executes a single task.
//
// A non-nil error from Run is a task failure: the executor marks the task
// FAILED and skips its dependents. Probe errors are treated the same way.
type TaskRunner interface {
	// Probe checks whether the task can be satisfied from cache.
	// If cached is true, result must be non-nil. On a miss a non-nil result
	// carries the hash later passed to Run.
	Probe(ctx context.Context, task core.Task) (result *NodeResult, cached bool, err error)

	Run(ctx context.Context, task core.Task, hash core.TaskHash) (*NodeResult, error)
}

// Executor executes a TaskGraph deterministically.
//
// An Executor runs its graph once; build a new one for every run.
type Executor struct {
	Graph  *TaskGraph
	Runner TaskRunner

	// Sink receives one event per task decision. Nil discards events.
	Sink trace.Sink

	mu       sync.Mutex
	state    ExecutionState
	order    []string
	hashes   map[string]core.TaskHash
	failures map[string]error
}

// NewExecutor creates an executor with all nodes initialized to PENDING.
func NewExecutor(g *TaskGraph, runner TaskRunner) (*Executor, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	if runner == nil {
		return nil, fmt.Errorf("nil runner")
	}

	state := make(ExecutionState, len(g.nodes))
	for _, n := range g.nodes {
		state[n.Name] = TaskPending
	}

	return &Executor{
		Graph:    g,
		Runner:   runner,
		state:    state,
		hashes:   make(map[string]core.TaskHash, len(g.nodes)),
		failures: make(map[string]error),
	}, nil
}

// RunSerial executes the graph in the calling goroutine.
//
// The next task is always the first element of GetReadyTasks. When a task
// fails, its dependents are skipped and independent tasks still run; the
// returned error is the first *TaskError in execution order.
func (e *Executor) RunSerial(ctx context.Context) (*GraphResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("execution cancelled: %w", err)
		}

		e.mu.Lock()
		ready := GetReadyTasks(e.Graph, e.state)
		done := e.allTerminalLocked()
		e.mu.Unlock()

		if len(ready) == 0 {
			if done {
				return e.result()
			}
			return nil, fmt.Errorf("no ready tasks but graph not finished")
		}

		started, err := e.start(ctx, ready[0])
		if err != nil {
			return nil, err
		}
		if started != nil {
			if err := started.run(ctx); err != nil {
				return nil, err
			}
		}
	}
}

// RunParallel executes the graph using up to concurrency workers.
//
// Dispatch is depth-staged: every task of depth d settles before any task of
// depth d+1 is considered. Within a depth, tasks are probed and started in
// name order by the calling goroutine, so ExecutionOrder matches RunSerial.
func (e *Executor) RunParallel(ctx context.Context, concurrency int) (*GraphResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be > 0")
	}

	for _, names := range e.stages() {
		var g errgroup.Group
		g.SetLimit(concurrency)

		for _, name := range names {
			if ctx.Err() != nil {
				break
			}
			started, err := e.start(ctx, name)
			if err != nil {
				_ = g.Wait()
				return nil, err
			}
			if started == nil {
				continue
			}
			g.Go(func() error { return started.run(ctx) })
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("execution cancelled: %w", err)
		}
	}
	return e.result()
}

// stages groups task names by depth, each stage sorted by name.
func (e *Executor) stages() [][]string {
	maxDepth := 0
	for _, d := range e.Graph.depth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	byDepth := make([][]string, maxDepth+1)
	for _, n := range e.Graph.nodes {
		d := e.Graph.depth[n.canonicalIndex]
		byDepth[d] = append(byDepth[d], n.Name)
	}
	for d := range byDepth {
		sort.Strings(byDepth[d])
	}
	return byDepth
}

// pendingRun is a task that has been moved to RUNNING and still has to execute.
type pendingRun struct {
	e    *Executor
	node *TaskNode
	hash core.TaskHash
}

// start probes the named task. A cache hit settles it as CACHED and returns
// nil. A miss moves it to RUNNING and returns the run to perform. A task that
// is already terminal (skipped by an upstream failure) returns nil.
func (e *Executor) start(ctx context.Context, name string) (*pendingRun, error) {
	node := e.Graph.nodesByName[name]

	e.mu.Lock()
	st := e.state[name]
	if IsTerminal(st) {
		e.mu.Unlock()
		return nil, nil
	}
	if st != TaskPending {
		e.mu.Unlock()
		return nil, fmt.Errorf("unexpected non-pending state for %q: %s", name, st)
	}
	if !e.Graph.dependenciesSucceeded(node.canonicalIndex, e.state) {
		e.mu.Unlock()
		return nil, fmt.Errorf("task %q is pending but dependencies are not successful", name)
	}
	e.mu.Unlock()

	res, cached, probeErr := e.Runner.Probe(ctx, node.Task)
	if probeErr == nil && cached && res == nil {
		probeErr = fmt.Errorf("probing cache: nil result")
	}

	e.mu.Lock()
	if probeErr == nil && cached {
		if err := Transition(e.state, name, TaskPending, TaskCached); err != nil {
			e.mu.Unlock()
			return nil, err
		}
		e.hashes[name] = res.Hash
		e.mu.Unlock()

		trace.SafeRecord(e.Sink, trace.TraceEvent{
			Kind:    trace.EventTaskCached,
			TaskID:  name,
			Op:      node.Task.Op,
			Targets: sortedCopy(node.Task.Outputs),
		})
		return nil, nil
	}

	if err := Transition(e.state, name, TaskPending, TaskRunning); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.order = append(e.order, name)
	e.mu.Unlock()

	if probeErr != nil {
		return nil, e.fail(node, fmt.Errorf("probing cache: %w", probeErr))
	}
	pr := &pendingRun{e: e, node: node}
	if res != nil {
		pr.hash = res.Hash
	}
	return pr, nil
}

// run executes the task outside the lock and commits its terminal state.
// The returned error is an executor invariant violation, never a task failure.
func (p *pendingRun) run(ctx context.Context) error {
	e, node := p.e, p.node

	res, err := e.Runner.Run(ctx, node.Task, p.hash)
	if err == nil && res == nil {
		err = fmt.Errorf("nil result")
	}
	if err != nil {
		return e.fail(node, err)
	}

	e.mu.Lock()
	e.hashes[node.Name] = res.Hash
	if err := Transition(e.state, node.Name, TaskRunning, TaskCompleted); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	trace.SafeRecord(e.Sink, trace.TraceEvent{
		Kind:    trace.EventTaskExecuted,
		TaskID:  node.Name,
		Op:      node.Task.Op,
		Targets: sortedCopy(node.Task.Outputs),
		Elapsed: res.Elapsed,
	})
	return nil
}

// fail records cause for a RUNNING task and skips its dependents.
func (e *Executor) fail(node *TaskNode, cause error) error {
	e.mu.Lock()
	e.failures[node.Name] = &TaskError{Task: node.Name, Err: cause}
	skipped, err := FailAndPropagate(e.Graph, e.state, node.Name)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	trace.SafeRecord(e.Sink, trace.TraceEvent{
		Kind:   trace.EventTaskFailed,
		TaskID: node.Name,
		Op:     node.Task.Op,
		Reason: trace.ReasonTaskError,
	})
	for _, name := range skipped {
		trace.SafeRecord(e.Sink, trace.TraceEvent{
			Kind:        trace.EventTaskSkipped,
			TaskID:      name,
			Op:          e.Graph.nodesByName[name].Task.Op,
			Reason:      trace.ReasonUpstreamFailed,
			CauseTaskID: node.Name,
		})
	}
	return nil
}

func (e *Executor) allTerminalLocked() bool {
	for _, st := range e.state {
		if !IsTerminal(st) {
			return false
		}
	}
	return true
}

// result assembles the GraphResult. The error is the first failure in
// execution order, or nil when every task succeeded.
func (e *Executor) result() (*GraphResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := &GraphResult{
		GraphHash:      e.Graph.Hash(),
		FinalState:     make(ExecutionState, len(e.state)),
		ExecutionOrder: append([]string(nil), e.order...),
		TaskHashes:     make(map[string]core.TaskHash, len(e.hashes)),
		Failures:       make(map[string]error, len(e.failures)),
	}
	for k, v := range e.state {
		res.FinalState[k] = v
	}
	for k, v := range e.hashes {
		res.TaskHashes[k] = v
	}
	for k, v := range e.failures {
		res.Failures[k] = v
	}

	var first error
	for _, name := range e.order {
		if err, ok := e.failures[name]; ok {
			first = err
			break
		}
	}
	return res, first
}

// FirstTaskError extracts the *TaskError from an executor error, if any.
func FirstTaskError(err error) (*TaskError, bool) {
	var te *TaskError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
