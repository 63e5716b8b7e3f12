// Package logging provides the structured diagnostic logger threaded
// optionally into WalletManager through its Config.
package logging

import (
	"context"
	"log/slog"
)

// Level mirrors the three-tier verbosity the wallet engine exposes:
// off, error-only, or debug.
type Level int

// Supported levels.
const (
	LevelOff Level = iota
	LevelError
	LevelDebug
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelError
	}
}

// Logger wraps a *slog.Logger with the engine's on/off gating so
// callers that never configure logging pay no structured-logging cost.
type Logger struct {
	level  Level
	slogger *slog.Logger
}

// New builds a Logger at level writing records through handler.
// Passing LevelOff or a nil handler produces a Logger whose methods are
// no-ops.
func New(level Level, handler slog.Handler) *Logger {
	if level == LevelOff || handler == nil {
		return &Logger{level: LevelOff}
	}
	return &Logger{level: level, slogger: slog.New(handler)}
}

// Noop returns a Logger that discards everything, the default when a
// caller does not configure logging explicitly.
func Noop() *Logger {
	return &Logger{level: LevelOff}
}

// Debug logs a diagnostic event (e.g. account derivation) at debug
// level.
func (l *Logger) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelDebug, msg, attrs)
}

// Error logs a failed operation's context (e.g. a failed fee-rate
// request) at error level.
func (l *Logger) Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelError, msg, attrs)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	if l == nil || l.level == LevelOff || l.slogger == nil {
		return
	}
	if level < l.level.slogLevel() {
		return
	}
	l.slogger.LogAttrs(ctx, level, msg, attrs...)
}
