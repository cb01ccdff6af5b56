// Package pwdriver implements page.Driver on Playwright's Chromium, as an
// alternative engine to the Rod driver.
package pwdriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"github.com/hazyhaar/ifscdir/branch"
	"github.com/hazyhaar/ifscdir/scraper/internal/page"
)

// Config configures the Playwright driver.
type Config struct {
	Headless         bool
	UserAgent        string
	ResourceBlocking []string
	// ActionTimeout bounds each select or click. Default: 5s.
	ActionTimeout time.Duration
	// Install downloads Chromium before launching.
	Install bool
	Logger  *slog.Logger
}

// Driver is a single Playwright page.
type Driver struct {
	pwr     *pw.Playwright
	browser pw.Browser
	page    pw.Page
	cfg     Config
}

var _ page.Driver = (*Driver)(nil)

// Open starts Playwright, launches Chromium and opens one page.
func Open(cfg Config) (*Driver, error) {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Install {
		if err := pw.Install(&pw.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			cfg.Logger.Warn("pwdriver: install failed, continuing", "error", err)
		}
	}
	pwr, err := pw.Run()
	if err != nil {
		return nil, fmt.Errorf("pwdriver: run: %w", err)
	}
	browser, err := pwr.Chromium.Launch(pw.BrowserTypeLaunchOptions{Headless: pw.Bool(cfg.Headless)})
	if err != nil {
		pwr.Stop()
		return nil, fmt.Errorf("pwdriver: launch: %w", err)
	}

	opts := pw.BrowserNewPageOptions{}
	if cfg.UserAgent != "" {
		opts.UserAgent = pw.String(cfg.UserAgent)
	}
	p, err := browser.NewPage(opts)
	if err != nil {
		browser.Close()
		pwr.Stop()
		return nil, fmt.Errorf("pwdriver: new page: %w", err)
	}

	if len(cfg.ResourceBlocking) > 0 {
		block := page.NewBlocklist(cfg.ResourceBlocking)
		err := p.Route("**/*", func(r pw.Route) {
			if block.Blocks(r.Request().ResourceType()) {
				r.Abort()
				return
			}
			r.Continue()
		})
		if err != nil {
			cfg.Logger.Warn("pwdriver: resource blocking failed", "error", err)
		}
	}

	cfg.Logger.Info("pwdriver: chromium launched", "headless", cfg.Headless)
	return &Driver{pwr: pwr, browser: browser, page: p, cfg: cfg}, nil
}

// Load navigates and waits for DOMContentLoaded. Playwright calls are not
// context-aware, so the context deadline becomes the navigation timeout.
func (d *Driver) Load(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := pw.PageGotoOptions{WaitUntil: pw.WaitUntilStateDomcontentloaded}
	if dl, ok := ctx.Deadline(); ok {
		opts.Timeout = pw.Float(float64(time.Until(dl).Milliseconds()))
	}
	if _, err := d.page.Goto(url, opts); err != nil {
		return fmt.Errorf("pwdriver: goto %s: %w", url, mapErr(err))
	}
	return nil
}

func (d *Driver) Options(ctx context.Context, locator string) ([]branch.Option, error) {
	loc, err := d.first(ctx, locator)
	if err != nil {
		return nil, err
	}
	v, err := loc.Evaluate(`el => Array.from(el.options).map(o => ({code: o.value, label: o.text}))`, nil)
	if err != nil {
		return nil, fmt.Errorf("pwdriver: read options: %w", mapErr(err))
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("pwdriver: encode options: %w", err)
	}
	var opts []branch.Option
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("pwdriver: decode options: %w", err)
	}
	return opts, nil
}

const matchJS = `(el, v) => {
	for (const o of el.options) {
		if (o.value === v || o.text.includes(v)) {
			el.value = o.value;
			el.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		}
	}
	return false;
}`

func (d *Driver) Select(ctx context.Context, locator, value string, s page.Strategy) error {
	loc, err := d.first(ctx, locator)
	if err != nil {
		return err
	}
	timeout := pw.Float(float64(d.cfg.ActionTimeout.Milliseconds()))

	switch s {
	case page.StrategyValue:
		_, err := loc.SelectOption(pw.SelectOptionValues{Values: &[]string{value}},
			pw.LocatorSelectOptionOptions{Timeout: timeout})
		if err != nil {
			return fmt.Errorf("pwdriver: select %q: %w", value, mapErr(err))
		}
		return nil

	case page.StrategyMatch:
		ok, err := loc.Evaluate(matchJS, value)
		if err != nil {
			return fmt.Errorf("pwdriver: match %q: %w", value, mapErr(err))
		}
		if b, _ := ok.(bool); !b {
			return page.ErrNoMatch
		}
		return nil

	case page.StrategyClick:
		opt := loc.Locator(fmt.Sprintf(`option[value=%q]`, value))
		n, err := opt.Count()
		if err != nil {
			return fmt.Errorf("pwdriver: find option %q: %w", value, mapErr(err))
		}
		if n == 0 {
			return page.ErrNoMatch
		}
		if err := loc.Click(pw.LocatorClickOptions{Timeout: timeout}); err != nil {
			return fmt.Errorf("pwdriver: open dropdown: %w", mapErr(err))
		}
		if err := opt.First().Click(pw.LocatorClickOptions{Timeout: timeout, Force: pw.Bool(true)}); err != nil {
			return fmt.Errorf("pwdriver: click option %q: %w", value, mapErr(err))
		}
		got, err := loc.InputValue()
		if err != nil {
			return fmt.Errorf("pwdriver: verify %q: %w", value, mapErr(err))
		}
		if got != value {
			return page.ErrNoMatch
		}
		return nil
	}
	return fmt.Errorf("pwdriver: unknown strategy %s", s)
}

func (d *Driver) Read(ctx context.Context, locator string) (page.Content, error) {
	loc, err := d.first(ctx, locator)
	if err != nil {
		return page.Content{}, err
	}
	text, err := loc.InnerText()
	if err != nil {
		return page.Content{}, fmt.Errorf("pwdriver: text: %w", mapErr(err))
	}
	html, err := loc.Evaluate(`el => el.outerHTML`, nil)
	if err != nil {
		return page.Content{}, fmt.Errorf("pwdriver: html: %w", mapErr(err))
	}
	s, _ := html.(string)
	return page.Content{Text: text, HTML: s}, nil
}

func (d *Driver) Close() error {
	var errs []error
	if d.browser != nil {
		errs = append(errs, d.browser.Close())
	}
	if d.pwr != nil {
		errs = append(errs, d.pwr.Stop())
	}
	return errors.Join(errs...)
}

// first resolves locator to its first match without waiting.
func (d *Driver) first(ctx context.Context, locator string) (pw.Locator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc := d.page.Locator(locator)
	n, err := loc.Count()
	if err != nil {
		return nil, fmt.Errorf("pwdriver: query %q: %w", locator, mapErr(err))
	}
	if n == 0 {
		return nil, page.ErrNotFound
	}
	return loc.First(), nil
}

func mapErr(err error) error {
	if errors.Is(err, pw.ErrTargetClosed) {
		return fmt.Errorf("%w: %v", page.ErrClosed, err)
	}
	return err
}
