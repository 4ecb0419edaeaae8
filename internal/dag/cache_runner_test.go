package dag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"carbonweaver/internal/core"
)

func fileTask(name, in, out string, calls *int) core.Task {
	t := core.Task{Name: name, Op: "copy", Outputs: []string{out}}
	if in != "" {
		t.Inputs = []string{in}
	}
	t.Func = func(context.Context) error {
		*calls++
		data := []byte(name)
		if in != "" {
			b, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			data = append(b, data...)
		}
		return os.WriteFile(out, data, 0o644)
	}
	return t
}

func TestCacheAwareRunner_SecondRunIsCached(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.txt")
	second := filepath.Join(dir, "second.txt")

	calls := 0
	tasks := []core.Task{
		fileTask("first", "", first, &calls),
		fileTask("second", first, second, &calls),
	}
	edges := []Edge{{From: "first", To: "second"}}
	cache := core.NewMemoryCache()

	run := func() *GraphResult {
		t.Helper()
		runner, err := NewCacheAwareRunner(core.NewRunner(dir, cache))
		if err != nil {
			t.Fatalf("NewCacheAwareRunner: %v", err)
		}
		ex, err := NewExecutor(mustGraph(t, tasks, edges), runner)
		if err != nil {
			t.Fatalf("NewExecutor: %v", err)
		}
		res, err := ex.RunSerial(context.Background())
		if err != nil {
			t.Fatalf("RunSerial: %v", err)
		}
		return res
	}

	r1 := run()
	if r1.Count(TaskCompleted) != 2 || calls != 2 {
		t.Fatalf("first run: states=%v calls=%d", r1.FinalState, calls)
	}

	r2 := run()
	if r2.Count(TaskCached) != 2 || calls != 2 {
		t.Fatalf("second run: states=%v calls=%d", r2.FinalState, calls)
	}
	if diff := cmp.Diff(r1.TaskHashes, r2.TaskHashes); diff != "" {
		t.Fatalf("task hashes changed (-first +second):\n%s", diff)
	}

	if err := os.Remove(second); err != nil {
		t.Fatalf("remove: %v", err)
	}
	r3 := run()
	want := ExecutionState{"first": TaskCached, "second": TaskCompleted}
	if diff := cmp.Diff(want, r3.FinalState); diff != "" {
		t.Fatalf("third run (-want +got):\n%s", diff)
	}
}
