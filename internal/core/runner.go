package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Runner orchestrates task execution with caching.
//
// The flow for a task:
//  1. Resolve inputs and compute the task hash
//  2. Look the hash up in the cache and verify the recorded target digests
//  3. If every target is intact: skip (cached)
//  4. Otherwise: execute, digest the targets, record them
type Runner struct {
	// Cache stores and retrieves execution records.
	Cache Cache

	// Resolver digests input files.
	Resolver *InputResolver

	// Hasher computes deterministic task hashes.
	Hasher *TaskHasher
}

// NewRunner creates a Runner backed by cache.
func NewRunner(baseDir string, cache Cache) *Runner {
	return &Runner{
		Cache:    cache,
		Resolver: NewInputResolver(baseDir),
		Hasher:   NewTaskHasher(),
	}
}

// RunResult contains the result of running or probing a task.
type RunResult struct {
	Hash      TaskHash
	FromCache bool
	Elapsed   time.Duration
}

// ErrMissingTarget is returned when a task finished without writing one of
// its declared outputs.
var ErrMissingTarget = errors.New("declared target was not written")

// Hash resolves the task inputs and returns its TaskHash.
func (r *Runner) Hash(task *Task) (TaskHash, error) {
	if err := validateTask(task); err != nil {
		return "", err
	}
	inputSet, err := r.Resolver.Resolve(task.Inputs)
	if err != nil {
		return "", fmt.Errorf("resolving inputs: %w", err)
	}
	return r.Hasher.ComputeHash(HashInput{
		Op:      task.Op,
		Params:  task.Params,
		Inputs:  inputSet,
		Outputs: task.Outputs,
	}), nil
}

// Probe reports whether the task is satisfied by the cache. On a miss the
// returned result still carries the task hash, for RunHashed.
//
// A hit requires the hash to be recorded and every recorded target to exist
// with the digest it had when the task last completed.
func (r *Runner) Probe(_ context.Context, task *Task) (*RunResult, bool, error) {
	hash, err := r.Hash(task)
	if err != nil {
		return nil, false, err
	}

	entry, err := r.Cache.Get(hash)
	if err != nil {
		return nil, false, fmt.Errorf("retrieving cache entry: %w", err)
	}
	if entry == nil || len(entry.Targets) != len(task.Outputs) {
		return &RunResult{Hash: hash}, false, nil
	}
	for _, target := range entry.Targets {
		digest, err := DigestFile(target.Path)
		if err != nil {
			if os.IsNotExist(err) {
				return &RunResult{Hash: hash}, false, nil
			}
			return nil, false, fmt.Errorf("digesting target %q: %w", target.Path, err)
		}
		if digest != target.Digest {
			return &RunResult{Hash: hash}, false, nil
		}
	}
	return &RunResult{Hash: hash, FromCache: true}, true, nil
}

// Run executes the task and records its targets on success.
//
// Failures are not cached. The error returned by the task function is passed
// through unchanged so callers can match it with errors.As.
func (r *Runner) Run(ctx context.Context, task *Task) (*RunResult, error) {
	hash, err := r.Hash(task)
	if err != nil {
		return nil, err
	}
	return r.RunHashed(ctx, task, hash)
}

// RunHashed is Run with the task hash already computed by Probe.
func (r *Runner) RunHashed(ctx context.Context, task *Task, hash TaskHash) (*RunResult, error) {
	if hash == "" {
		return nil, fmt.Errorf("task %q has no hash", task.Name)
	}
	if task.Func == nil {
		return nil, fmt.Errorf("task %q has no function", task.Name)
	}

	start := time.Now()
	if err := task.Func(ctx); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	targets := make([]TargetDigest, 0, len(task.Outputs))
	for _, out := range task.Outputs {
		digest, err := DigestFile(out)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrMissingTarget, out)
			}
			return nil, fmt.Errorf("digesting target %q: %w", out, err)
		}
		targets = append(targets, TargetDigest{Path: out, Digest: digest})
	}

	if err := r.Cache.Put(&CacheEntry{Hash: hash, TaskName: task.Name, Targets: targets}); err != nil {
		return nil, fmt.Errorf("caching result: %w", err)
	}
	return &RunResult{Hash: hash, Elapsed: elapsed}, nil
}

func validateTask(task *Task) error {
	if task == nil {
		return fmt.Errorf("task is nil")
	}
	if task.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if task.Op == "" {
		return fmt.Errorf("task %q: op is required", task.Name)
	}
	return nil
}
