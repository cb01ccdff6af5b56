package sink

import (
	"context"
	"log/slog"
	"strings"
)

// Log turns events into structured log records. Failures and soft
// warnings log at Warn, per-record progress at Debug, milestones at Info.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log sink. A nil logger uses slog.Default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Emit(ctx context.Context, ev Event) error {
	attrs := []slog.Attr{slog.String("kind", string(ev.Kind))}
	if ev.Level != "" {
		attrs = append(attrs, slog.String("level", ev.Level))
	}
	if len(ev.Path) > 0 {
		attrs = append(attrs, slog.String("path", strings.Join(ev.Path, " > ")))
	}
	if ev.IFSC != "" {
		attrs = append(attrs, slog.String("ifsc", ev.IFSC))
	}
	if ev.Attempt > 0 {
		attrs = append(attrs, slog.Int("attempt", ev.Attempt))
	}
	if ev.Tag != "" {
		attrs = append(attrs, slog.String("tag", ev.Tag))
	}
	if ev.Total > 0 {
		attrs = append(attrs, slog.Int("index", ev.Index), slog.Int("total", ev.Total))
	}
	if ev.Kind == KindRunFinished || ev.Kind == KindCheckpoint {
		attrs = append(attrs, slog.Int("succeeded", ev.Succeeded), slog.Int("failed", ev.Failed))
	}
	if ev.Error != "" {
		attrs = append(attrs, slog.String("error", ev.Error))
	}

	lvl := slog.LevelInfo
	switch ev.Kind {
	case KindFailure, KindRetry, KindPopulateTimeout, KindEmptyLevel:
		lvl = slog.LevelWarn
	case KindRecord:
		lvl = slog.LevelDebug
	}
	l.logger.LogAttrs(ctx, lvl, "scrape: "+strings.ReplaceAll(string(ev.Kind), "_", " "), attrs...)
	return nil
}

func (l *Log) Close() error { return nil }
