package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger writes JSON or logfmt-style text to cfg.Output, stderr by
// default.
func NewSlogLogger(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &slogLogger{logger: slog.New(newSlogHandler(cfg))}, nil
}

func newSlogHandler(cfg *Config) slog.Handler {
	var w io.Writer = os.Stderr
	if cfg.Output != nil {
		w = cfg.Output
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.slog()}
	if cfg.Format == FormatText || cfg.Format == FormatConsole {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func New() (Logger, error) {
	return NewFromConfig(DefaultConfig())
}

func NewDevelopment() (Logger, error) {
	return NewFromConfig(DevelopmentConfig())
}

// NewFromConfig picks the zap backend for development configs and slog
// otherwise.
func NewFromConfig(cfg *Config) (Logger, error) {
	if cfg != nil && cfg.Development {
		return NewZapLogger(cfg)
	}
	return NewSlogLogger(cfg)
}

func (s *slogLogger) log(level slog.Level, msg string, fields []Field) {
	s.logger.LogAttrs(context.Background(), level, msg, slogAttrs(fields)...)
}

func (s *slogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }
func (s *slogLogger) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s *slogLogger) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields) }
func (s *slogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

func (s *slogLogger) With(fields ...Field) Logger {
	attrs := slogAttrs(fields)
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return &slogLogger{logger: s.logger.With(args...)}
}

func (s *slogLogger) WithContext(context.Context) Logger {
	return s
}

// Sync is a no-op: slog handlers write through.
func (s *slogLogger) Sync() error {
	return nil
}

func slogAttrs(fields []Field) []slog.Attr {
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	return attrs
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
