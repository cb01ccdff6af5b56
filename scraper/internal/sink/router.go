package sink

import (
	"context"
	"log/slog"
	"time"
)

// Router fans events out to all configured sinks. One sink error does not
// block the others: errors are logged and the first encountered is
// returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger, now: time.Now}
}

// Emit stamps ev with the current time when unset and delivers it.
func (r *Router) Emit(ctx context.Context, ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = r.now().UTC()
	}
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Emit(ctx, ev); err != nil {
			r.logger.Warn("sink: emit failed", "kind", ev.Kind, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Stamped fills in the run ID of events emitted by components that do not
// know which run they serve. Close is not forwarded: the wrapped sink
// outlives the run.
type Stamped struct {
	Next  Sink
	RunID string
}

func (s Stamped) Emit(ctx context.Context, ev Event) error {
	if ev.RunID == "" {
		ev.RunID = s.RunID
	}
	return s.Next.Emit(ctx, ev)
}

func (s Stamped) Close() error { return nil }
