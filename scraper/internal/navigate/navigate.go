// Package navigate loads the target page with bounded retries.
package navigate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/ifscdir/scraper/internal/page"
	"github.com/hazyhaar/ifscdir/scraper/internal/retry"
	"github.com/hazyhaar/ifscdir/scraper/internal/sink"
)

// NavigationError reports that every load attempt failed.
type NavigationError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate: %s: %d attempts failed: %v", e.URL, e.Attempts, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// Config configures a Controller. Zero durations disable the matching wait.
type Config struct {
	URL        string
	Attempts   int
	Timeout    time.Duration // per attempt
	Settle     time.Duration // after a successful load
	RetryDelay time.Duration
	// MinInterval spaces successive loads, across attempts and callers.
	MinInterval time.Duration
	Events      sink.Sink
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Events == nil {
		c.Events = sink.Discard{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Controller brings the page to its initial state.
type Controller struct {
	drv     page.Driver
	cfg     Config
	limiter *rate.Limiter
}

// New creates a Controller for drv.
func New(drv page.Driver, cfg Config) *Controller {
	cfg.defaults()
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &Controller{drv: drv, cfg: cfg, limiter: rate.NewLimiter(limit, 1)}
}

// Load navigates to the configured URL, resetting every dropdown. It
// returns a *NavigationError once all attempts are spent; errors wrapping
// page.ErrClosed end the loop early.
func (c *Controller) Load(ctx context.Context) error {
	attempts := 0
	err := retry.Do(ctx, retry.Policy{
		Attempts: c.cfg.Attempts,
		Delay:    c.cfg.RetryDelay,
		Stop:     func(err error) bool { return errors.Is(err, page.ErrClosed) },
		OnRetry: func(attempt int, err error) {
			c.cfg.Logger.Warn("navigate: load failed, retrying",
				"url", c.cfg.URL, "attempt", attempt, "max", c.cfg.Attempts, "error", err)
			c.cfg.Events.Emit(ctx, sink.Event{Kind: sink.KindRetry, Attempt: attempt, Error: err.Error()})
		},
	}, func(ctx context.Context) error {
		attempts++
		return c.once(ctx)
	})
	if err != nil {
		return &NavigationError{URL: c.cfg.URL, Attempts: attempts, Err: err}
	}
	return nil
}

func (c *Controller) once(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("navigate: pacing: %w", err)
	}

	loadCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	if err := c.drv.Load(loadCtx, c.cfg.URL); err != nil {
		return err
	}
	return retry.Sleep(ctx, c.cfg.Settle)
}
