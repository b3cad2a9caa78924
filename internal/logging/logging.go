package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

var level = &slog.LevelVar{}

// Init installs the default slog logger. The level comes from LOG_LEVEL when
// set, otherwise from fallback.
func Init(fallback slog.Level) {
	InitWriter(os.Stderr, fallback)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, fallback slog.Level) {
	level.Set(fallback)
	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level.Set(ParseLevel(l, fallback))
	}

	logger := slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(w),
		}),
	)
	slog.SetDefault(logger)
}

// SetLevel changes the level of every logger handed out so far.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// ParseLevel maps the names accepted in LOG_LEVEL and --log-level.
func ParseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(s) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	default:
		return fallback
	}
}

// Get returns the default logger tagged with a module name.
func Get(module string) *slog.Logger {
	return slog.Default().With("mod", module)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
