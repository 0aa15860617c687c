package supervisor

import (
	"errors"
	"fmt"

	"nozomi-tproxy/internal/redirect"
)

var (
	ErrNoCommand     = errors.New("no command to run")
	ErrNoSuchProcess = errors.New("no such process")
)

const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitUsage        = 2
	ExitInconsistent = 3
)

// ExitError carries the exit status of a child that did not succeed. A child
// killed by a signal reports 128 plus the signal number.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.Code)
}

// ExitCode maps the result of Run to a process exit status. A failed
// teardown outranks the child's own status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, redirect.ErrInconsistentState) {
		return ExitInconsistent
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, ErrNoCommand) {
		return ExitUsage
	}
	return ExitFailure
}
