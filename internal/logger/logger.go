// internal/logger/logger.go
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	console "github.com/phsym/console-slog"
)

// Logger is the structured logger used by every package of the master.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// With returns a child logger carrying keyValues on every record.
	With(keyValues ...any) Logger
	// Enabled reports whether level would be logged.
	Enabled(level slog.Level) bool
	SetLevel(level slog.Level)
}

// Output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options selects level, format and destination.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

type slogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// New builds a slog backed logger.
func New(opts Options) (Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	lv := &slog.LevelVar{}
	lv.Set(lvl)

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case FormatConsole:
		handler = console.NewHandler(out, &console.HandlerOptions{Level: lv})
	case "", FormatJSON:
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: lv,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					a.Key = "ts"
				}
				return a
			},
		})
	default:
		return nil, fmt.Errorf("logger: unknown format %q", opts.Format)
	}

	return &slogLogger{logger: slog.New(handler), level: lv}, nil
}

// ParseLevel maps a config level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logger: unknown level %q", s)
	}
}

func (l *slogLogger) Debug(msg string, kv ...any) {
	l.logger.Debug(msg, kv...)
}

func (l *slogLogger) Info(msg string, kv ...any) {
	l.logger.Info(msg, kv...)
}

func (l *slogLogger) Warn(msg string, kv ...any) {
	l.logger.Warn(msg, kv...)
}

func (l *slogLogger) Error(msg string, kv ...any) {
	l.logger.Error(msg, kv...)
}

func (l *slogLogger) With(kv ...any) Logger {
	return &slogLogger{logger: l.logger.With(kv...), level: l.level}
}

func (l *slogLogger) Enabled(level slog.Level) bool {
	return level >= l.level.Level()
}

func (l *slogLogger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// Nop discards everything.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func (n nopLogger) With(...any) Logger {
	return n
}

func (nopLogger) Enabled(slog.Level) bool {
	return false
}

func (nopLogger) SetLevel(slog.Level) {}
