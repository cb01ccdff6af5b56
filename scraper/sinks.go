package scraper

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/ifscdir/scraper/internal/sink"
)

// Sink receives progress events.
type Sink = sink.Sink

// Event is one progress observation.
type Event = sink.Event

// EventFunc is called for each event.
type EventFunc = sink.EventFunc

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewLogSink turns events into structured log records.
func NewLogSink(logger *slog.Logger) Sink {
	return sink.NewLog(logger)
}

// NewMetricsSink registers run counters on reg under namespace.
func NewMetricsSink(namespace string, reg prometheus.Registerer) Sink {
	return sink.NewMetrics(namespace, reg)
}

// NewCallbackSink creates an in-process callback sink.
func NewCallbackSink(fn EventFunc) Sink {
	return sink.NewCallback(fn)
}
