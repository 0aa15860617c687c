package logger

import (
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Config *Config `optional:"true"`
}

// NewLogger builds the backend selected by the provided config and flushes
// it when the application stops.
func NewLogger(lc fx.Lifecycle, p Params) (Logger, error) {
	log, err := NewFromConfig(p.Config)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.StopHook(log.Sync))
	return log, nil
}

var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)
