// Package sink defines observability backends for scrape progress events.
// Sinks only observe: a failing sink never changes the traversal.
package sink

import (
	"context"
	"time"
)

// Kind classifies an Event.
type Kind string

const (
	KindRunStarted      Kind = "run_started"
	KindBankStarted     Kind = "bank_started"
	KindRecord          Kind = "record"
	KindFailure         Kind = "failure"
	KindRetry           Kind = "retry"
	KindPopulateTimeout Kind = "populate_timeout"
	KindEmptyLevel      Kind = "empty_level"
	KindCheckpoint      Kind = "checkpoint"
	KindRunFinished     Kind = "run_finished"
)

// Event is one observation emitted during a run. Fields irrelevant to the
// Kind are left zero.
type Event struct {
	Kind  Kind      `json:"kind"`
	Time  time.Time `json:"time"`
	RunID string    `json:"run_id,omitempty"`
	// Level is the dropdown level involved (bank, state, district, branch).
	Level string `json:"level,omitempty"`
	// Path holds the option labels from the bank down to Level.
	Path      []string `json:"path,omitempty"`
	IFSC      string   `json:"ifsc,omitempty"`
	Attempt   int      `json:"attempt,omitempty"`
	Error     string   `json:"error,omitempty"`
	Sample    string   `json:"sample,omitempty"`
	Tag       string   `json:"tag,omitempty"`
	Index     int      `json:"index,omitempty"`
	Total     int      `json:"total,omitempty"`
	Succeeded int      `json:"succeeded,omitempty"`
	Failed    int      `json:"failed,omitempty"`
}

// Sink is the output interface. Implementations deliver events to
// different backends (slog, stdout, Prometheus, in-process callback).
type Sink interface {
	Emit(ctx context.Context, ev Event) error
	Close() error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, Event) error { return nil }
func (Discard) Close() error                      { return nil }
