package cli

import (
	"errors"
	"fmt"
	"strings"

	"carbonweaver/internal/carbon"
	"carbonweaver/internal/config"
	"carbonweaver/internal/dag"
)

const (
	ExitSuccess           = 0
	ExitGraphFailure      = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// InvocationError is a CLI-level failure carrying its exit code.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

func configErrorf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitConfigError, Message: fmt.Sprintf(format, args...)}
}

// IssuesError reports args that failed validation.
type IssuesError struct {
	Issues []config.Issue
}

func (e *IssuesError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = fmt.Sprintf("%s: %s", strings.Join(is.Keys, ", "), is.Message)
	}
	return "invalid args: " + strings.Join(parts, "; ")
}

// ExitCode maps an error to its semantic exit code. Unknown errors yield
// ExitInternalError.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}

	var (
		issues  *IssuesError
		cfgErr  *carbon.ConfigError
		geomErr *carbon.GeometryError
		taskErr *dag.TaskError
	)
	switch {
	case errors.As(err, &issues), errors.As(err, &cfgErr), errors.As(err, &geomErr):
		return ExitConfigError
	case errors.As(err, &taskErr):
		return ExitGraphFailure
	}
	return ExitInternalError
}
