package log

import (
	"fmt"
	stdlog "log"
	"log/slog"
	"strings"
)

// Config declaratively describes a logger for ApplyConfig.
type Config struct {
	// Level is one of debug|info|warn|error|fatal. Defaults to info.
	Level string `json:"level" yaml:"level"`
	// Format is one of text|json. Defaults to text.
	Format string `json:"format" yaml:"format"`
	// File, when set, adds a file output alongside the console.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
	// Redact lists field keys whose values are replaced with [REDACTED].
	Redact []string `json:"redact,omitempty" yaml:"redact,omitempty"`
	// SampleInitial/SampleThereafter enable per-message sampling: the first
	// SampleInitial occurrences always pass, then one in SampleThereafter.
	SampleInitial    int `json:"sampleInitial,omitempty" yaml:"sampleInitial,omitempty"`
	SampleThereafter int `json:"sampleThereafter,omitempty" yaml:"sampleThereafter,omitempty"`
}

// ParseLevel converts a level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// ApplyConfig builds a Logger from a declarative Config.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "json":
		formatter = &JSONFormatter{}
	case "text", "":
		formatter = &TextFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	opts := []LoggerOption{WithLevel(level), WithFormatter(formatter), WithOutput(NewConsoleOutput())}
	if cfg.File != "" {
		fo, err := NewFileOutput(cfg.File)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithOutput(fo))
	}

	logger := NewLogger(opts...)
	base, ok := logger.(*BaseLogger)
	if !ok {
		return logger, nil
	}
	h, ok := base.slogLogger.Handler().(*bridgeHandler)
	if !ok {
		return logger, nil
	}
	h = h.withRedactions(cfg.Redact)
	if cfg.SampleThereafter > 0 {
		h = h.withSampler(cfg.SampleInitial, cfg.SampleThereafter)
	}
	base.slogLogger = slog.New(h)
	return base, nil
}

// ToStdLogger adapts a Logger to a *log.Logger for libraries that expect one.
// Messages are logged at InfoLevel.
func ToStdLogger(l Logger) *stdlog.Logger {
	return stdlog.New(stdWriter{l: l}, "", 0)
}

// RedirectStdLog routes the standard library's default logger (used by
// Pebble among others) through the provided Logger.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdWriter{l: l})
}

type stdWriter struct{ l Logger }

func (w stdWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if msg != "" {
		w.l.Info(msg)
	}
	return len(p), nil
}
