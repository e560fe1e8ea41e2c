package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger writes JSON log lines tagged with the service, host and an action name.
type Logger struct {
	handler *slog.Logger
}

func New(service, level string) *Logger {
	return NewWithWriter(os.Stdout, service, level)
}

func NewWithWriter(w io.Writer, service, level string) *Logger {
	hostname, _ := os.Hostname()
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return &Logger{
		handler: slog.New(h).With(
			slog.String("service", service),
			slog.String("hostname", hostname),
		),
	}
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *Logger {
	return &Logger{handler: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// With returns a logger that adds args to every line.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{handler: l.handler.With(args...)}
}

func (l *Logger) Debug(action, message string, args ...any) {
	l.log(slog.LevelDebug, action, message, args)
}

func (l *Logger) Info(action, message string, args ...any) {
	l.log(slog.LevelInfo, action, message, args)
}

func (l *Logger) Warn(action, message string, args ...any) {
	l.log(slog.LevelWarn, action, message, args)
}

func (l *Logger) Error(action, message string, err error, args ...any) {
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	l.log(slog.LevelError, action, message, args)
}

func (l *Logger) log(level slog.Level, action, message string, args []any) {
	l.handler.Log(context.Background(), level, message, append([]any{slog.String("action", action)}, args...)...)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
