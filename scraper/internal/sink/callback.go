package sink

import "context"

// EventFunc is called for each event, in process.
type EventFunc func(ctx context.Context, ev Event) error

// Callback delivers events via a Go function call. Embedders use it to
// drive their own progress display.
type Callback struct {
	fn EventFunc
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn EventFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Emit(ctx context.Context, ev Event) error {
	if c.fn != nil {
		return c.fn(ctx, ev)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
