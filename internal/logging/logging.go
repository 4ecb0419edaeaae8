// Package logging builds the zap loggers used by the CLI and the pipeline.
package logging

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"carbonweaver/internal/trace"
)

// ParseLevel maps a level name such as "debug" or "warn" to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(name)))); err != nil {
		return lvl, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

// New returns a JSON logger writing to w at the given level.
func New(level zapcore.Level, w io.Writer) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}

// NewNop returns a logger that discards everything.
func NewNop() *zap.Logger { return zap.NewNop() }

// TraceSink logs executor decisions. Executed and cached tasks are logged at
// Debug, failures at Error, skips at Warn.
type TraceSink struct {
	Logger *zap.Logger
}

func (s TraceSink) Record(ev trace.TraceEvent) {
	if s.Logger == nil {
		return
	}
	fields := []zap.Field{zap.String("task", ev.TaskID), zap.String("op", ev.Op)}
	switch ev.Kind {
	case trace.EventTaskExecuted:
		s.Logger.Debug("task executed", append(fields, zap.Duration("elapsed", ev.Elapsed), zap.Strings("targets", ev.Targets))...)
	case trace.EventTaskCached:
		s.Logger.Debug("task satisfied from cache", append(fields, zap.Strings("targets", ev.Targets))...)
	case trace.EventTaskFailed:
		s.Logger.Error("task failed", append(fields, zap.String("reason", ev.Reason))...)
	case trace.EventTaskSkipped:
		s.Logger.Warn("task skipped", append(fields, zap.String("cause", ev.CauseTaskID))...)
	}
}
