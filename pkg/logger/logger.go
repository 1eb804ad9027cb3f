package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Init configures the process-wide logger. Production environments log JSON
// at info level, everything else logs text at debug level unless level is set.
func Init(environment string, opts ...Option) {
	o := options{writer: os.Stdout}
	if strings.EqualFold(environment, "production") {
		o.format = "json"
		o.level = "info"
	} else {
		o.format = "text"
		o.level = "debug"
	}
	for _, opt := range opts {
		opt(&o)
	}

	handlerOpts := &slog.HandlerOptions{Level: parseLevel(o.level)}

	var handler slog.Handler
	switch strings.ToLower(o.format) {
	case "json":
		handler = slog.NewJSONHandler(o.writer, handlerOpts)
	default:
		handler = slog.NewTextHandler(o.writer, handlerOpts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

type options struct {
	level  string
	format string
	writer io.Writer
}

type Option func(*options)

func WithLevel(level string) Option {
	return func(o *options) {
		if level != "" {
			o.level = level
		}
	}
}

func WithFormat(format string) Option {
	return func(o *options) {
		if format != "" {
			o.format = format
		}
	}
}

func WithWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.writer = w
		}
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// Fatal logs at error level and exits the process.
func Fatal(msg string, args ...any) {
	Logger.Error(msg, args...)
	os.Exit(1)
}
