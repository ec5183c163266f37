package logging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// levelTrace sits below slog's debug level so pion's trace output stays
// hidden unless a handler explicitly asks for it.
const levelTrace = slog.LevelDebug - 4

// PionFactory routes pion's scoped loggers into slog.
type PionFactory struct {
	log *slog.Logger
}

// NewPionFactory returns a pion LoggerFactory writing to root (slog.Default when nil).
func NewPionFactory(root *slog.Logger) *PionFactory {
	if root == nil {
		root = slog.Default()
	}
	return &PionFactory{log: root}
}

func (f *PionFactory) NewLogger(scope string) logging.LeveledLogger {
	return pionLogger{log: f.log.With("mod", scope)}
}

type pionLogger struct {
	log *slog.Logger
}

func (p pionLogger) logf(level slog.Level, format string, args ...any) {
	if !p.log.Enabled(context.Background(), level) {
		return
	}
	p.log.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func (p pionLogger) Trace(msg string) { p.log.Log(context.Background(), levelTrace, msg) }

func (p pionLogger) Tracef(format string, args ...any) { p.logf(levelTrace, format, args...) }

func (p pionLogger) Debug(msg string) { p.log.Debug(msg) }

func (p pionLogger) Debugf(format string, args ...any) { p.logf(slog.LevelDebug, format, args...) }

func (p pionLogger) Info(msg string) { p.log.Info(msg) }

func (p pionLogger) Infof(format string, args ...any) { p.logf(slog.LevelInfo, format, args...) }

func (p pionLogger) Warn(msg string) { p.log.Warn(msg) }

func (p pionLogger) Warnf(format string, args ...any) { p.logf(slog.LevelWarn, format, args...) }

func (p pionLogger) Error(msg string) { p.log.Error(msg) }

func (p pionLogger) Errorf(format string, args ...any) { p.logf(slog.LevelError, format, args...) }
