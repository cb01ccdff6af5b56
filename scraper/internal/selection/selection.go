// Package selection chooses dropdown entries through a chain of fallback
// strategies and waits for the dependent dropdown to populate.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/ifscdir/branch"
	"github.com/hazyhaar/ifscdir/scraper/internal/page"
	"github.com/hazyhaar/ifscdir/scraper/internal/retry"
	"github.com/hazyhaar/ifscdir/scraper/internal/sink"
)

// SelectionError reports that every strategy failed for one value.
type SelectionError struct {
	Level branch.Level
	Value string
	Errs  []error // one per strategy, in order
}

func (e *SelectionError) Error() string {
	parts := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		parts[i] = fmt.Sprintf("%s: %v", page.Strategies[i], err)
	}
	return fmt.Sprintf("selection: %s %q: all strategies failed (%s)", e.Level, e.Value, strings.Join(parts, "; "))
}

func (e *SelectionError) Unwrap() []error { return e.Errs }

// Config configures an Engine.
type Config struct {
	Locators page.Locators
	// Settle is the pause after a successful selection.
	Settle time.Duration
	// Populate bounds the wait for the dependent dropdown, per selected level.
	Populate map[branch.Level]time.Duration
	// Presence bounds the wait for a dropdown to exist before reading it.
	Presence time.Duration
	Poll     time.Duration
	Events   sink.Sink
	Logger   *slog.Logger
}

// DefaultPopulate returns the per-level populate bounds of the site.
func DefaultPopulate() map[branch.Level]time.Duration {
	return map[branch.Level]time.Duration{
		branch.Bank:     15 * time.Second,
		branch.State:    12 * time.Second,
		branch.District: 12 * time.Second,
	}
}

func (c *Config) defaults() {
	c.Locators = c.Locators.WithDefaults()
	if c.Populate == nil {
		c.Populate = DefaultPopulate()
	}
	if c.Poll <= 0 {
		c.Poll = 250 * time.Millisecond
	}
	if c.Events == nil {
		c.Events = sink.Discard{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine drives the four cascading dropdowns.
type Engine struct {
	drv page.Driver
	cfg Config
}

// New creates an Engine for drv.
func New(drv page.Driver, cfg Config) *Engine {
	cfg.defaults()
	return &Engine{drv: drv, cfg: cfg}
}

// Select chooses value at level, trying each strategy in order until one
// succeeds. After success it settles, then waits for the dependent
// dropdown; a dependent that stays empty is reported as an event, not an
// error.
func (e *Engine) Select(ctx context.Context, level branch.Level, value string) error {
	locator := e.cfg.Locators.For(level)

	var errs []error
	selected := false
	for _, s := range page.Strategies {
		err := e.drv.Select(ctx, locator, value, s)
		if err == nil {
			selected = true
			break
		}
		if errors.Is(err, page.ErrClosed) || ctx.Err() != nil {
			return fmt.Errorf("selection: %s %q: %w", level, value, err)
		}
		e.cfg.Logger.Debug("selection: strategy failed",
			"level", level.String(), "value", value, "strategy", s.String(), "error", err)
		errs = append(errs, err)
	}
	if !selected {
		return &SelectionError{Level: level, Value: value, Errs: errs}
	}

	if err := retry.Sleep(ctx, e.cfg.Settle); err != nil {
		return err
	}

	next, ok := level.Next()
	if !ok {
		return nil
	}
	populated, err := e.waitPopulated(ctx, level, next)
	if err != nil {
		return err
	}
	if !populated {
		e.cfg.Logger.Warn("selection: dependent dropdown did not populate",
			"level", next.String(), "after", level.String(), "value", value)
		e.cfg.Events.Emit(ctx, sink.Event{
			Kind:  sink.KindPopulateTimeout,
			Level: next.String(),
			Error: fmt.Sprintf("no options after selecting %s %q", level, value),
		})
	}
	return nil
}

// waitPopulated polls the dependent dropdown until it holds more than its
// placeholder entry.
func (e *Engine) waitPopulated(ctx context.Context, selected, next branch.Level) (bool, error) {
	locator := e.cfg.Locators.For(next)
	return e.poll(ctx, e.cfg.Populate[selected], func(ctx context.Context) (bool, error) {
		opts, err := e.drv.Options(ctx, locator)
		if err != nil {
			return false, err
		}
		return len(opts) > 1, nil
	})
}

// Options waits for the dropdown at level to exist, then returns its real
// entries in page order.
func (e *Engine) Options(ctx context.Context, level branch.Level) ([]branch.Option, error) {
	locator := e.cfg.Locators.For(level)
	var raw []branch.Option
	found, err := e.poll(ctx, e.cfg.Presence, func(ctx context.Context) (bool, error) {
		opts, err := e.drv.Options(ctx, locator)
		if errors.Is(err, page.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		raw = opts
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("selection: %s options: %w", level, err)
	}
	if !found {
		return nil, fmt.Errorf("selection: %s options: %w", level, page.ErrNotFound)
	}
	return branch.FilterOptions(raw), nil
}

// poll evaluates cond until it holds or timeout elapses. Only errors
// wrapping page.ErrClosed and context errors abort the poll; others count
// as "not yet".
func (e *Engine) poll(ctx context.Context, timeout time.Duration, cond func(context.Context) (bool, error)) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := cond(ctx)
		if err != nil && (errors.Is(err, page.ErrClosed) || ctx.Err() != nil) {
			return false, err
		}
		if ok {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		if err := retry.Sleep(ctx, e.cfg.Poll); err != nil {
			return false, err
		}
	}
}
