package supervisor

import (
	"context"

	"go.uber.org/fx"

	"nozomi-tproxy/internal/redirect"
	"nozomi-tproxy/pkg/logger"
)

var Module = fx.Module("supervisor",
	fx.Provide(
		ProvideConfig,
		ProvideBackend,

		New,
	),
)

type ProvidedConfig struct {
	fx.Out

	Config       *Config
	LoggerConfig *logger.Config
}

func ProvideConfig(configFile string) (ProvidedConfig, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return ProvidedConfig{}, err
	}

	return ProvidedConfig{
		Config:       cfg,
		LoggerConfig: cfg.Log.ToLoggerConfig(),
	}, nil
}

// ProvideBackend returns a backend that logs ops in dry-run mode and one
// bound to the host kernel otherwise.
func ProvideBackend(lc fx.Lifecycle, cfg *Config, log logger.Logger) (redirect.Backend, error) {
	if cfg.DryRun {
		return redirect.NewBackend(redirect.NewDryRunExecutor(log), log), nil
	}

	host, err := redirect.OpenHost(cfg.CgroupRoot)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			host.Close()
			return nil
		},
	})

	return redirect.NewBackend(host, log), nil
}
