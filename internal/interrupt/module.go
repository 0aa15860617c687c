package interrupt

import (
	"context"

	"go.uber.org/fx"

	"nozomi-tproxy/pkg/logger"
)

var Module = fx.Module("interrupt",
	fx.Provide(NewWithLifecycle),
)

func NewWithLifecycle(lc fx.Lifecycle, log logger.Logger) *Handler {
	h := New(log)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			h.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			h.Stop()
			return nil
		},
	})

	return h
}
