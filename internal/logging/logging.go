// Package logging builds the per-component slog loggers.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Logger hands out component loggers sharing one level and output format.
type Logger struct {
	levelVar *slog.LevelVar
	format   string
	out      io.Writer
}

// New creates a Logger writing to stdout.
func New(level, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter creates a Logger writing to w.
func NewWithWriter(w io.Writer, level, format string) *Logger {
	levelVar := &slog.LevelVar{}
	levelVar.Set(ParseLevel(level))
	return &Logger{levelVar: levelVar, format: strings.ToLower(format), out: w}
}

func (l *Logger) SetLevel(level slog.Level) {
	l.levelVar.Set(level)
}

// GetLogger returns a logger tagged with the component name.
func (l *Logger) GetLogger(name string) *slog.Logger {
	var h slog.Handler
	opts := &slog.HandlerOptions{Level: l.levelVar}
	switch l.format {
	case FormatConsole:
		h = NewConsoleHandler(l.out, l.levelVar)
	case FormatJSON:
		h = slog.NewJSONHandler(l.out, opts)
	default:
		h = slog.NewTextHandler(l.out, opts)
	}
	return slog.New(h).With("component", name)
}

// ParseLevel maps debug/info/warn/error to a slog level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
