package redirect

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"nozomi-tproxy/pkg/logger"
)

// Executor runs a single op against the host.
type Executor interface {
	Exec(ctx context.Context, op Op) error
}

// Backend applies and reverts ordered step lists.
type Backend interface {
	// Apply runs steps in order. If one fails, the steps already applied
	// are reverted before the original error is returned.
	Apply(ctx context.Context, steps []Step) error
	// Revert runs the inverse of every step in reverse order.
	Revert(ctx context.Context, steps []Step) error
}

type ExecBackend struct {
	exec   Executor
	logger logger.Logger
}

func NewBackend(exec Executor, log logger.Logger) *ExecBackend {
	return &ExecBackend{
		exec:   exec,
		logger: log.With(logger.String("component", "backend")),
	}
}

func (b *ExecBackend) Apply(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		err := ctx.Err()
		if err == nil {
			b.logger.Debug("applying", logger.String("op", step.String()))
			err = b.exec.Exec(ctx, step)
		}
		if err == nil {
			continue
		}

		stepErr := &StepError{Op: step, Err: err}
		b.logger.Error("setup step failed, rolling back",
			logger.String("op", step.String()),
			logger.Int("applied", i),
			logger.Error(err),
		)

		if rbErr := b.Revert(context.WithoutCancel(ctx), steps[:i]); rbErr != nil {
			return multierr.Append(stepErr, fmt.Errorf("rollback: %w", rbErr))
		}
		return stepErr
	}
	return nil
}

// Revert keeps going after a failed op so that as much state as possible is
// removed; every failure is reported.
func (b *ExecBackend) Revert(ctx context.Context, steps []Step) error {
	var errs error
	for i := len(steps) - 1; i >= 0; i-- {
		undo := steps[i].Undo()
		b.logger.Debug("reverting", logger.String("op", undo.String()))
		if err := b.exec.Exec(ctx, undo); err != nil {
			b.logger.Error("teardown step failed",
				logger.String("op", undo.String()),
				logger.Error(err),
			)
			errs = multierr.Append(errs, &StepError{Op: undo, Err: err})
		}
	}
	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInconsistentState, errs)
	}
	return nil
}
