package rtc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// LoggerFactory bridges pion's leveled loggers onto slog. Pion's trace
// level maps to debug.
type LoggerFactory struct {
	Logger *slog.Logger
}

// NewLogger returns a pion logger under the given scope.
func (f LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	l := f.Logger
	if l == nil {
		l = slog.Default()
	}
	return pionLogger{l.With("pion", scope)}
}

type pionLogger struct {
	logger *slog.Logger
}

func (l pionLogger) log(level slog.Level, msg string) {
	l.logger.Log(context.Background(), level, msg)
}

func (l pionLogger) logf(level slog.Level, format string, args ...interface{}) {
	if !l.logger.Enabled(context.Background(), level) {
		return
	}
	l.logger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func (l pionLogger) Trace(msg string) { l.log(slog.LevelDebug, msg) }
func (l pionLogger) Tracef(format string, args ...interface{}) {
	l.logf(slog.LevelDebug, format, args...)
}
func (l pionLogger) Debug(msg string) { l.log(slog.LevelDebug, msg) }
func (l pionLogger) Debugf(format string, args ...interface{}) {
	l.logf(slog.LevelDebug, format, args...)
}
func (l pionLogger) Info(msg string) { l.log(slog.LevelInfo, msg) }
func (l pionLogger) Infof(format string, args ...interface{}) {
	l.logf(slog.LevelInfo, format, args...)
}
func (l pionLogger) Warn(msg string) { l.log(slog.LevelWarn, msg) }
func (l pionLogger) Warnf(format string, args ...interface{}) {
	l.logf(slog.LevelWarn, format, args...)
}
func (l pionLogger) Error(msg string) { l.log(slog.LevelError, msg) }
func (l pionLogger) Errorf(format string, args ...interface{}) {
	l.logf(slog.LevelError, format, args...)
}
