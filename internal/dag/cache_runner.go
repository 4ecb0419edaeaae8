package dag

import (
	"context"
	"fmt"
	"time"

	"carbonweaver/internal/core"
)

// NodeResult is the outcome of executing or probing a single node.
type NodeResult struct {
	Hash      core.TaskHash
	FromCache bool
	Elapsed   time.Duration
}

// CacheAwareRunner adapts core.Runner to the DAG executor.
//
// Probe resolves inputs, computes the TaskHash and verifies recorded targets.
// Run executes the task function under the probed hash and records its
// targets on success.
type CacheAwareRunner struct {
	Runner *core.Runner
}

func NewCacheAwareRunner(r *core.Runner) (*CacheAwareRunner, error) {
	if r == nil {
		return nil, fmt.Errorf("nil core runner")
	}
	return &CacheAwareRunner{Runner: r}, nil
}

func (r *CacheAwareRunner) Run(ctx context.Context, task core.Task, hash core.TaskHash) (*NodeResult, error) {
	res, err := r.Runner.RunHashed(ctx, &task, hash)
	if err != nil {
		return nil, err
	}
	return &NodeResult{Hash: res.Hash, FromCache: res.FromCache, Elapsed: res.Elapsed}, nil
}

func (r *CacheAwareRunner) Probe(ctx context.Context, task core.Task) (*NodeResult, bool, error) {
	if r == nil || r.Runner == nil {
		return nil, false, fmt.Errorf("nil core runner")
	}
	res, cached, err := r.Runner.Probe(ctx, &task)
	if err != nil {
		return nil, false, err
	}
	return &NodeResult{Hash: res.Hash, FromCache: cached}, cached, nil
}
