package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/ifscdir/branch"
	"github.com/hazyhaar/ifscdir/scraper/internal/page"
)

// Driver is a single Rod page implementing page.Driver.
type Driver struct {
	mgr    *Manager
	page   *rod.Page
	router *rod.HijackRouter
}

var _ page.Driver = (*Driver)(nil)

// Open starts a browser with cfg and opens the page the run will drive.
func Open(ctx context.Context, cfg Config) (*Driver, error) {
	mgr := NewManager(cfg)
	b, err := mgr.Start(ctx)
	if err != nil {
		return nil, err
	}

	p, err := stealth.Page(b)
	if err != nil {
		mgr.Close()
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	d := &Driver{mgr: mgr, page: p}

	if mgr.cfg.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: mgr.cfg.UserAgent}); err != nil {
			mgr.cfg.Logger.Warn("browser: user agent override failed", "error", err)
		}
	}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		d.router = applyResourceBlocking(p, page.NewBlocklist(mgr.cfg.ResourceBlocking))
	}
	return d, nil
}

// Load navigates and waits for DOMContentLoaded only.
func (d *Driver) Load(ctx context.Context, url string) error {
	p := d.page.Context(ctx)
	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, mapErr(err))
	}
	wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("browser: wait dom %s: %w", url, err)
	}
	return nil
}

const optionsJS = `() => Array.from(this.options).map(o => ({code: o.value, label: o.text}))`

func (d *Driver) Options(ctx context.Context, locator string) ([]branch.Option, error) {
	el, err := d.element(ctx, locator)
	if err != nil {
		return nil, err
	}
	res, err := el.Eval(optionsJS)
	if err != nil {
		return nil, fmt.Errorf("browser: read options: %w", mapErr(err))
	}
	var opts []branch.Option
	if err := res.Value.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("browser: decode options: %w", err)
	}
	return opts, nil
}

// matchJS sets the first option whose value equals, or whose text
// contains, the target and fires change.
const matchJS = `(v) => {
	for (const o of this.options) {
		if (o.value === v || o.text.includes(v)) {
			this.value = o.value;
			this.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		}
	}
	return false;
}`

const valueIsJS = `(v) => this.value === v`

func (d *Driver) Select(ctx context.Context, locator, value string, s page.Strategy) error {
	el, err := d.element(ctx, locator)
	if err != nil {
		return err
	}
	byValue := `option[value="` + cssString(value) + `"]`

	switch s {
	case page.StrategyValue:
		if err := el.Select([]string{byValue}, true, rod.SelectorTypeCSSSector); err != nil {
			return fmt.Errorf("browser: select %q: %w", value, mapErr(err))
		}
		return nil

	case page.StrategyMatch:
		res, err := el.Eval(matchJS, value)
		if err != nil {
			return fmt.Errorf("browser: match %q: %w", value, mapErr(err))
		}
		if !res.Value.Bool() {
			return page.ErrNoMatch
		}
		return nil

	case page.StrategyClick:
		opts, err := el.Elements(byValue)
		if err != nil {
			return fmt.Errorf("browser: find option %q: %w", value, mapErr(err))
		}
		if len(opts) == 0 {
			return page.ErrNoMatch
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("browser: open dropdown: %w", mapErr(err))
		}
		if err := opts.First().Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("browser: click option %q: %w", value, mapErr(err))
		}
		res, err := el.Eval(valueIsJS, value)
		if err != nil {
			return fmt.Errorf("browser: verify %q: %w", value, mapErr(err))
		}
		if !res.Value.Bool() {
			return page.ErrNoMatch
		}
		return nil
	}
	return fmt.Errorf("browser: unknown strategy %s", s)
}

func (d *Driver) Read(ctx context.Context, locator string) (page.Content, error) {
	el, err := d.element(ctx, locator)
	if err != nil {
		return page.Content{}, err
	}
	text, err := el.Text()
	if err != nil {
		return page.Content{}, fmt.Errorf("browser: text: %w", mapErr(err))
	}
	html, err := el.HTML()
	if err != nil {
		return page.Content{}, fmt.Errorf("browser: html: %w", mapErr(err))
	}
	return page.Content{Text: text, HTML: html}, nil
}

func (d *Driver) Close() error {
	if d.router != nil {
		d.router.Stop()
	}
	if d.page != nil {
		d.page.Close()
	}
	return d.mgr.Close()
}

// element returns the first match of locator without waiting for it.
func (d *Driver) element(ctx context.Context, locator string) (*rod.Element, error) {
	els, err := d.page.Context(ctx).Elements(locator)
	if err != nil {
		return nil, fmt.Errorf("browser: query %q: %w", locator, mapErr(err))
	}
	if len(els) == 0 {
		return nil, page.ErrNotFound
	}
	return els.First(), nil
}

// mapErr folds a lost DevTools session, connection or target into
// page.ErrClosed.
func mapErr(err error) error {
	if browserGone(err) {
		return fmt.Errorf("%w: %v", page.ErrClosed, err)
	}
	return err
}

func browserGone(err error) bool {
	if errors.Is(err, cdp.ErrSessionNotFound) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}
	var cdpErr *cdp.Error
	if errors.As(err, &cdpErr) && strings.Contains(cdpErr.Message, "Target closed") {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}

// cssString escapes s for use inside a double-quoted CSS string.
func cssString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
