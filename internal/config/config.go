package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"nozomi-tproxy/pkg/logger"
)

// EnvPrefix is prepended to every config key when read from the environment.
const EnvPrefix = "NOZOMI"

type Config interface {
	Validate() error
	GetLog() *LogConfig
}

type LogConfig struct {
	Level       logger.Level  `mapstructure:"level" json:"level" yaml:"level"`
	Format      logger.Format `mapstructure:"format" json:"format" yaml:"format"`
	Development bool          `mapstructure:"development" json:"development" yaml:"development"`
}

func (c *LogConfig) ToLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:       c.Level,
		Format:      c.Format,
		Development: c.Development,
	}
}

// logEnv holds the unprefixed diagnostics variables.
type logEnv struct {
	Level  string `envconfig:"LOG_LEVEL"`
	Format string `envconfig:"LOG_FORMAT"`
}

// ApplyEnv overrides level and format from LOG_LEVEL and LOG_FORMAT when set.
func (c *LogConfig) ApplyEnv() error {
	var env logEnv
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to read log environment: %w", err)
	}

	if env.Level != "" {
		level, err := logger.ParseLevel(env.Level)
		if err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
		c.Level = level
	}

	if env.Format != "" {
		format, err := logger.ParseFormat(env.Format)
		if err != nil {
			return fmt.Errorf("LOG_FORMAT: %w", err)
		}
		c.Format = format
	}

	return nil
}

func (c *LogConfig) Validate() error {
	if _, err := logger.ParseLevel(string(c.Level)); err != nil {
		return err
	}
	if _, err := logger.ParseFormat(string(c.Format)); err != nil {
		return err
	}
	return nil
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       logger.LevelInfo,
		Format:      logger.FormatText,
		Development: false,
	}
}

func DevelopmentLogConfig() LogConfig {
	return LogConfig{
		Level:       logger.LevelDebug,
		Format:      logger.FormatConsole,
		Development: true,
	}
}

// Load reads configFile (if any) and the environment into cfg, applies the
// LOG_* overrides and validates the result.
func Load(appName string, configFile string, cfg Config) error {
	loader := NewLoader(appName)

	if err := loader.LoadFile(configFile); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := loader.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.GetLog().ApplyEnv(); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}
