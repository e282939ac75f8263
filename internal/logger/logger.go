// Package logger owns the process-wide slog instance. Engines receive it via
// AppContext; the package-level helpers exist for main and for code that runs
// before wiring.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/oggyb/heartpost/internal/config"
)

// Options configures the global logger. The zero value logs text at info to
// stdout with no component tag.
type Options struct {
	Level     string
	JSON      bool
	Component string
	AddSource bool
	// Output overrides the destination, mainly for tests. Nil means stdout.
	Output io.Writer
}

var (
	mu       sync.RWMutex
	instance *slog.Logger

	// level is shared by every handler Init builds, so SetLevel takes effect
	// without re-initializing.
	level slog.LevelVar
)

// Init builds and installs the global logger. Safe to call more than once;
// the last call wins.
func Init(opts Options) {
	level.Set(ParseLevel(opts.Level))

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	hopts := &slog.HandlerOptions{
		Level:     &level,
		AddSource: opts.AddSource,
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, hopts)
	} else {
		// compact local timestamps read better in a terminal
		hopts.ReplaceAttr = func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format("2006-01-02 15:04:05"))
			}
			return a
		}
		handler = slog.NewTextHandler(out, hopts)
	}

	l := slog.New(handler)
	if opts.Component != "" {
		l = l.With("component", opts.Component)
	}

	mu.Lock()
	instance = l
	mu.Unlock()
}

// InitFromConfig maps the app config onto Options.
func InitFromConfig(c *config.Config) {
	if c == nil {
		Init(Options{})
		return
	}
	Init(Options{
		Level:     c.Log.Level,
		JSON:      strings.EqualFold(c.Log.Format, "json"),
		Component: c.Log.Component,
		AddSource: c.Log.Source,
	})
}

// SetLevel adjusts verbosity at runtime without rebuilding the handler.
func SetLevel(s string) { level.Set(ParseLevel(s)) }

// L returns the global logger, initializing a default one on first use.
func L() *slog.Logger {
	mu.RLock()
	l := instance
	mu.RUnlock()
	if l != nil {
		return l
	}

	Init(Options{})
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// With creates a child logger with additional attributes.
func With(args ...any) *slog.Logger { return L().With(args...) }

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }

// ParseLevel maps a config string onto a slog level; unknown values fall back
// to info.
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
