package logger

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger

	Sync() error
}

type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Uint(key string, value uint) Field {
	return Field{Key: key, Value: value}
}

func Uint32(key string, value uint32) Field {
	return Field{Key: key, Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value}
}

func Error(err error) Field {
	return Field{Key: "error", Value: err}
}

func NamedError(key string, err error) Field {
	return Field{Key: key, Value: err}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel accepts the level names used in LOG_LEVEL. "trace" is treated
// as debug and "warning" as warn.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

type Format string

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatConsole, FormatText:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown log format %q", s)
	}
}

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
	FormatText    Format = "text"
)

// Config selects the backend and its output. Output defaults to stderr;
// Development switches to the zap development logger.
type Config struct {
	Level       Level
	Format      Format
	Output      io.Writer
	Development bool
}

func DefaultConfig() *Config {
	return &Config{
		Level:       LevelInfo,
		Format:      FormatJSON,
		Output:      nil,
		Development: false,
	}
}

func DevelopmentConfig() *Config {
	return &Config{
		Level:       LevelDebug,
		Format:      FormatConsole,
		Output:      nil,
		Development: true,
	}
}
