// Package extract turns a branch detail block into a Detail. Fields are
// located by ordered text matchers, with a row-by-row fallback over the
// block's HTML for the free-text fields.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/ifscdir/branch"
	"github.com/hazyhaar/ifscdir/scraper/internal/page"
	"github.com/hazyhaar/ifscdir/scraper/internal/retry"
)

// ErrNoContainer means none of the container locators matched.
var ErrNoContainer = errors.New("extract: no detail container on page")

// Parse extracts a Detail from container content. It returns nil when the
// content carries no IFSC-shaped routing code. The code is upper-cased.
func Parse(c page.Content) *branch.Detail {
	text := c.Text
	ifsc := strings.ToUpper(first(text, ifscMatchers))
	if !branch.ValidIFSC(ifsc) {
		return nil
	}

	d := &branch.Detail{
		IFSC:          ifsc,
		MICR:          first(text, micrMatchers),
		Address:       first(text, addressMatchers),
		Contact:       first(text, contactMatchers),
		BranchDetails: first(text, branchMatchers),
	}
	if d.Address == "" || d.Contact == "" || d.BranchDetails == "" {
		fillFromRows(d, c.HTML)
	}
	return d
}

// fillFromRows scans table rows, paragraphs and divs for the free-text
// fields still missing.
func fillFromRows(d *branch.Detail, html string) {
	if strings.TrimSpace(html) == "" {
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}
	doc.Find("tr, p, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		row := s.Text()
		if d.Address == "" {
			d.Address, _ = rowAddressMatcher(row)
		}
		if d.Contact == "" {
			d.Contact, _ = rowContactMatcher(row)
		}
		if d.BranchDetails == "" {
			d.BranchDetails, _ = rowBranchMatcher(row)
		}
		return d.Address == "" || d.Contact == "" || d.BranchDetails == ""
	})
}

// Config configures an Extractor.
type Config struct {
	// Containers are the detail-block locators, tried in order.
	Containers []string
	// Settle is the pause before reading, letting the detail block render.
	Settle time.Duration
	Logger *slog.Logger
}

// Extractor reads the detail block of the currently selected branch.
type Extractor struct {
	drv page.Driver
	cfg Config
}

// New creates an Extractor. Empty Containers default to the site's.
func New(drv page.Driver, cfg Config) *Extractor {
	if len(cfg.Containers) == 0 {
		cfg.Containers = page.DefaultLocators().Containers
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Extractor{drv: drv, cfg: cfg}
}

// Extract reads the first matching container and parses it. A nil Detail
// with a nil error means the block held no routing code; the returned
// content is kept for diagnostics.
func (x *Extractor) Extract(ctx context.Context) (*branch.Detail, page.Content, error) {
	if err := retry.Sleep(ctx, x.cfg.Settle); err != nil {
		return nil, page.Content{}, err
	}

	for _, loc := range x.cfg.Containers {
		c, err := x.drv.Read(ctx, loc)
		if errors.Is(err, page.ErrNotFound) {
			continue
		}
		if err != nil {
			if errors.Is(err, page.ErrClosed) || ctx.Err() != nil {
				return nil, page.Content{}, fmt.Errorf("extract: read %q: %w", loc, err)
			}
			x.cfg.Logger.Debug("extract: container read failed", "locator", loc, "error", err)
			continue
		}
		return Parse(c), c, nil
	}
	return nil, page.Content{}, ErrNoContainer
}
