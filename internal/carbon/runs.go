package carbon

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"carbonweaver/internal/core"
	"carbonweaver/internal/dag"
	"carbonweaver/internal/runlog"
	"carbonweaver/internal/trace"
)

// ledger records one run in the workspace run log. Its failures are logged
// and never fail the run.
type ledger struct {
	store *runlog.Store
	run   runlog.Run
	now   func() time.Time
	log   *zap.Logger
}

func startLedger(dir, graphHash, runID string, now func() time.Time, log *zap.Logger) *ledger {
	l := &ledger{
		run: runlog.Run{
			RunID:     runID,
			GraphHash: graphHash,
			StartTime: now().UTC(),
			Status:    runlog.StatusRunning,
		},
		now: now,
		log: log,
	}
	store, err := runlog.NewStore(dir)
	if err != nil {
		log.Warn("Can't open run log", zap.Error(err))
		return l
	}
	l.store = store

	prev, err := store.LastFailed(graphHash)
	switch {
	case err != nil:
		log.Warn("Can't read run log", zap.Error(err))
	case prev != nil:
		id := prev.RunID
		l.run.PreviousRunID = &id
		l.run.RetryCount = prev.RetryCount + 1
		log.Info("Retrying failed run", zap.String("previous_run_id", id), zap.Int("retry_count", l.run.RetryCount))
	}
	if err := store.SaveRun(l.run); err != nil {
		log.Warn("Can't record run start", zap.Error(err))
	}
	return l
}

func (l *ledger) finish(gr *dag.GraphResult, tr trace.ExecutionTrace, runErr error) {
	finished := l.now().UTC()
	l.run.FinishTime = &finished
	l.run.Status = runlog.StatusSucceeded
	if runErr != nil {
		l.run.Status = runlog.StatusFailed
	}
	if gr != nil {
		l.run.Tasks = map[string]int{}
		for _, st := range gr.FinalState {
			l.run.Tasks[string(st)]++
		}
	}
	if l.store == nil {
		return
	}
	if hash, err := l.store.SaveTrace(l.run.RunID, tr); err != nil {
		l.log.Warn("Can't record run trace", zap.Error(err))
	} else {
		l.run.TraceHash = hash
	}
	if err := l.store.SaveRun(l.run); err != nil {
		l.log.Warn("Can't record run result", zap.Error(err))
	}
	if runErr == nil {
		return
	}
	if err := l.store.SaveFailure(l.run.RunID, failureRecord(runErr)); err != nil {
		l.log.Warn("Can't record run failure", zap.Error(err))
	}
}

// failureRecord classifies a run error for the run log.
func failureRecord(err error) runlog.Failure {
	f := runlog.Failure{
		FailureClass: runlog.FailureClassSystem,
		ErrorCode:    "ExecutorError",
		ErrorMessage: err.Error(),
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		f.ErrorCode = "Canceled"
	}

	te, ok := dag.FirstTaskError(err)
	if !ok {
		return f
	}
	task := te.Task
	f.FailureClass = runlog.FailureClassExecution
	f.Task = &task

	var (
		rerr *ReclassificationError
		gerr *GeometryError
	)
	switch {
	case errors.As(err, &rerr):
		f.ErrorCode = "MissingLULCCode"
	case errors.As(err, &gerr):
		f.ErrorCode = "GeometryMismatch"
	case errors.Is(err, core.ErrMissingTarget):
		f.ErrorCode = "MissingTarget"
	default:
		f.ErrorCode = "TaskFailed"
	}
	return f
}
