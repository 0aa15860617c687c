package redirect

import (
	"errors"
	"fmt"
)

var (
	// ErrInconsistentState marks a failed teardown or rollback. Some of the
	// kernel state created for the session may still be installed and needs
	// manual inspection.
	ErrInconsistentState = errors.New("inconsistent kernel state")

	ErrGuardReleased = errors.New("redirection guard already released")
)

// StepError reports the op that failed.
type StepError struct {
	Op  Op
	Err error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
