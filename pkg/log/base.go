package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Debug logs a message at DebugLevel with structured fields.
func (l *BaseLogger) Debug(msg string, fields ...Field) {
	l.logAttrs(slog.LevelDebug, msg, attrsFromFieldSlice(fields))
}

// Info logs a message at InfoLevel with structured fields.
func (l *BaseLogger) Info(msg string, fields ...Field) {
	l.logAttrs(slog.LevelInfo, msg, attrsFromFieldSlice(fields))
}

// Warn logs a message at WarnLevel with structured fields.
func (l *BaseLogger) Warn(msg string, fields ...Field) {
	l.logAttrs(slog.LevelWarn, msg, attrsFromFieldSlice(fields))
}

// Error logs a message at ErrorLevel with structured fields.
func (l *BaseLogger) Error(msg string, fields ...Field) {
	l.logAttrs(slog.LevelError, msg, attrsFromFieldSlice(fields))
}

// Fatal logs a message at FatalLevel and exits the process.
func (l *BaseLogger) Fatal(msg string, fields ...Field) {
	l.logAttrs(slog.LevelError, msg, attrsFromFieldSlice(fields))
	os.Exit(1)
}

// Debugf logs a printf-style message at DebugLevel.
func (l *BaseLogger) Debugf(msg string, args ...interface{}) {
	l.logAttrs(slog.LevelDebug, fmt.Sprintf(msg, args...), nil)
}

// Infof logs a printf-style message at InfoLevel.
func (l *BaseLogger) Infof(msg string, args ...interface{}) {
	l.logAttrs(slog.LevelInfo, fmt.Sprintf(msg, args...), nil)
}

// Warnf logs a printf-style message at WarnLevel.
func (l *BaseLogger) Warnf(msg string, args ...interface{}) {
	l.logAttrs(slog.LevelWarn, fmt.Sprintf(msg, args...), nil)
}

// Errorf logs a printf-style message at ErrorLevel.
func (l *BaseLogger) Errorf(msg string, args ...interface{}) {
	l.logAttrs(slog.LevelError, fmt.Sprintf(msg, args...), nil)
}

// Fatalf logs a printf-style message at FatalLevel and exits the process.
func (l *BaseLogger) Fatalf(msg string, args ...interface{}) {
	l.logAttrs(slog.LevelError, fmt.Sprintf(msg, args...), nil)
	os.Exit(1)
}

func (l *BaseLogger) logAttrs(level slog.Level, msg string, attrs []slog.Attr) {
	l.slogLogger.LogAttrs(context.Background(), level, msg, attrs...)
}

// WithField returns a logger with one extra field attached to every entry.
func (l *BaseLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(Fields{key: value})
}

// WithFields returns a logger with the map of fields attached to every entry.
func (l *BaseLogger) WithFields(fields Fields) Logger {
	return l.derive(attrsFromMap(fields))
}

// WithError returns a logger with the error attached under the "error" key.
func (l *BaseLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

// With returns a logger with the given fields attached to every entry.
func (l *BaseLogger) With(fields ...Field) Logger {
	return l.derive(attrsFromFieldSlice(fields))
}

// WithContext returns a logger carrying fields extracted from ctx.
func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	return l.WithFields(ContextExtractor(ctx))
}

// WithComponent tags every entry with a component name.
func (l *BaseLogger) WithComponent(component string) Logger {
	return l.WithField(ComponentKey, component)
}

// SetLevel sets the minimum log level.
func (l *BaseLogger) SetLevel(level Level) { l.level = level }

// GetLevel returns the current minimum log level.
func (l *BaseLogger) GetLevel() Level { return l.level }

// derive clones the logger with additional base attrs layered into the
// slog handler chain. The clone shares formatter and outputs.
func (l *BaseLogger) derive(attrs []slog.Attr) Logger {
	clone := &BaseLogger{
		level:     l.level,
		fields:    l.fields,
		formatter: l.formatter,
		outputs:   l.outputs,
	}
	h := l.slogLogger.Handler().WithAttrs(attrs)
	clone.slogLogger = slog.New(h)
	return clone
}
