// Package runlog keeps a durable ledger of model runs in the task cache
// directory, so a rerun can name the failed attempt it retries.
package runlog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// Run is the persistent metadata of one execution attempt.
type Run struct {
	RunID      string     `json:"run_id"`
	GraphHash  string     `json:"graph_hash"`
	StartTime  time.Time  `json:"start_time"`
	FinishTime *time.Time `json:"finish_time"`
	Status     RunStatus  `json:"status"`

	// RetryCount is 0 for a first attempt and grows by one each time a run
	// retries a failed run of the same graph.
	RetryCount    int     `json:"retry_count"`
	PreviousRunID *string `json:"previous_run_id"`

	// Tasks counts final task states by name, e.g. "COMPLETED": 6.
	Tasks map[string]int `json:"tasks,omitempty"`

	// TraceHash is the sha256 of the canonical trace.json of the run.
	TraceHash string `json:"trace_hash,omitempty"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if strings.TrimSpace(r.GraphHash) == "" {
		errs = append(errs, errors.New("graph_hash is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	switch r.Status {
	case StatusRunning, StatusSucceeded, StatusFailed:
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if r.RetryCount < 0 {
		errs = append(errs, errors.New("retry_count must be >= 0"))
	}
	if r.PreviousRunID != nil && strings.TrimSpace(*r.PreviousRunID) == "" {
		errs = append(errs, errors.New("previous_run_id must not be empty when provided"))
	}
	return errors.Join(errs...)
}

type FailureClass string

const (
	// FailureClassExecution is a task that returned an error.
	FailureClassExecution FailureClass = "execution"
	// FailureClassSystem is anything else: cancellation, I/O, executor faults.
	FailureClassSystem FailureClass = "system"
)

// Failure is the recorded termination reason of a failed run.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	Task         *string      `json:"task,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassExecution, FailureClassSystem:
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.Task != nil && strings.TrimSpace(*f.Task) == "" {
		errs = append(errs, errors.New("task must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	return errors.Join(errs...)
}
