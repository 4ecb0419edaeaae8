package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ExecutionTrace is the canonical record of what the executor decided for
// every task of one graph run.
//
// Events carry logical decisions only. Elapsed is kept for metrics but is
// excluded from the canonical encoding, so two runs that make the same
// decisions produce byte-identical traces regardless of timing.
type ExecutionTrace struct {
	GraphHash string       `json:"graphHash"`
	Events    []TraceEvent `json:"events"`
}

// TraceEventKind is the stable discriminator for TraceEvent.
// The string values are part of the canonical bytes; do not rename.
type TraceEventKind string

const (
	EventTaskCached   TraceEventKind = "TaskCached"
	EventTaskExecuted TraceEventKind = "TaskExecuted"
	EventTaskFailed   TraceEventKind = "TaskFailed"
	EventTaskSkipped  TraceEventKind = "TaskSkipped"
)

// Reason codes used by the executor.
const (
	ReasonUpstreamFailed = "UpstreamFailed"
	ReasonTaskError      = "TaskError"
)

// TraceEvent is a single logical transition of one task.
type TraceEvent struct {
	Kind TraceEventKind `json:"kind"`

	// TaskID is the task name.
	TaskID string `json:"taskId"`

	// Op is the operation of the task, e.g. "reclassify".
	Op string `json:"op,omitempty"`

	// Reason is a stable reason code such as ReasonUpstreamFailed.
	Reason string `json:"reason,omitempty"`

	// CauseTaskID is the failing upstream task for skipped events.
	CauseTaskID string `json:"causeTaskId,omitempty"`

	// Targets are the outputs the task wrote or was satisfied by.
	Targets []string `json:"targets,omitempty"`

	// Elapsed is the wall time of an executed task; never encoded.
	Elapsed time.Duration `json:"-"`
}

// Validate checks basic invariants and returns a descriptive error.
func (t *ExecutionTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.GraphHash == "" {
		return errors.New("graphHash is required")
	}
	for i, e := range t.Events {
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.TaskID == "" {
			return fmt.Errorf("events[%d].taskId is required for kind %q", i, e.Kind)
		}
	}
	return nil
}

// Canonicalize sorts targets and orders events by (taskId, kind, reason, cause).
func (t *ExecutionTrace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		if len(t.Events[i].Targets) == 0 {
			t.Events[i].Targets = nil
			continue
		}
		targets := append([]string(nil), t.Events[i].Targets...)
		sort.Strings(targets)
		t.Events[i].Targets = targets
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a, b := t.Events[i], t.Events[j]
		switch {
		case a.TaskID != b.TaskID:
			return a.TaskID < b.TaskID
		case kindOrder(a.Kind) != kindOrder(b.Kind):
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		case a.Reason != b.Reason:
			return a.Reason < b.Reason
		default:
			return a.CauseTaskID < b.CauseTaskID
		}
	})
}

func kindOrder(k TraceEventKind) int {
	switch k {
	case EventTaskCached:
		return 10
	case EventTaskExecuted:
		return 20
	case EventTaskFailed:
		return 30
	case EventTaskSkipped:
		return 40
	default:
		return 1000
	}
}

// CanonicalJSON returns the canonical JSON encoding of a canonicalized copy.
func (t ExecutionTrace) CanonicalJSON() ([]byte, error) {
	cp := ExecutionTrace{GraphHash: t.GraphHash, Events: make([]TraceEvent, len(t.Events))}
	copy(cp.Events, t.Events)
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(cp)
}

// Hash returns the sha256 hex of the canonical JSON bytes.
func (t ExecutionTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
