package logger

import (
	"go.uber.org/fx/fxevent"
)

// FxLogger reports dependency injection events. The supervisor shares its
// terminal with the child, so successful lifecycle events stay at debug and
// only failures are raised to error.
type FxLogger struct {
	logger Logger
}

func NewFxLogger(log Logger) fxevent.Logger {
	return &FxLogger{logger: log.With(String("component", "fx"))}
}

func (l *FxLogger) report(msg string, err error, fields ...Field) {
	if err != nil {
		l.logger.Error(msg+" failed", append(fields, Error(err))...)
		return
	}
	l.logger.Debug(msg, fields...)
}

func hook(callee, caller string) []Field {
	return []Field{String("callee", callee), String("caller", caller)}
}

func (l *FxLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		l.report("start hook", e.Err, append(hook(e.FunctionName, e.CallerName), Duration("runtime", e.Runtime))...)
	case *fxevent.OnStopExecuted:
		l.report("stop hook", e.Err, append(hook(e.FunctionName, e.CallerName), Duration("runtime", e.Runtime))...)
	case *fxevent.Provided:
		l.report("provide", e.Err,
			String("constructor", e.ConstructorName),
			Any("types", e.OutputTypeNames),
		)
	case *fxevent.Decorated:
		l.report("decorate", e.Err,
			String("decorator", e.DecoratorName),
			Any("types", e.OutputTypeNames),
		)
	case *fxevent.Invoked:
		l.report("invoke", e.Err, String("function", e.FunctionName))
	case *fxevent.Stopping:
		l.logger.Debug("stopping", String("signal", e.Signal.String()))
	case *fxevent.Stopped:
		l.report("stop", e.Err)
	case *fxevent.RollingBack:
		l.logger.Error("start failed, rolling back", Error(e.StartErr))
	case *fxevent.RolledBack:
		l.report("rollback", e.Err)
	case *fxevent.Started:
		l.report("start", e.Err)
	case *fxevent.LoggerInitialized:
		l.report("event logger", e.Err, String("constructor", e.ConstructorName))
	}
}
