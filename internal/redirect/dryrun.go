package redirect

import (
	"context"

	"nozomi-tproxy/pkg/logger"
)

// DryRunExecutor logs every op instead of running it.
type DryRunExecutor struct {
	logger logger.Logger
}

func NewDryRunExecutor(log logger.Logger) *DryRunExecutor {
	return &DryRunExecutor{logger: log.With(logger.String("component", "dry-run"))}
}

func (d *DryRunExecutor) Exec(_ context.Context, op Op) error {
	d.logger.Info("would run", logger.String("op", op.String()))
	return nil
}
