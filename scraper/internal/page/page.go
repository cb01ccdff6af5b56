// Package page defines the capability interface the scraping engine uses
// to talk to the target page, independent of the browser automation
// library behind it.
package page

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/ifscdir/branch"
)

var (
	// ErrNotFound means no element matched the locator.
	ErrNotFound = errors.New("page: element not found")
	// ErrNoMatch means a selection strategy found no option to select.
	ErrNoMatch = errors.New("page: no matching option")
	// ErrClosed means the browser or page is gone. It is the only driver
	// error the engine treats as fatal.
	ErrClosed = errors.New("page: driver closed")
)

// Strategy is one way of choosing an option in a dropdown.
type Strategy int

const (
	// StrategyValue uses the driver's native select-by-value.
	StrategyValue Strategy = iota
	// StrategyMatch scans options for one whose value equals, or whose
	// label contains, the target, sets it and fires a change event.
	StrategyMatch
	// StrategyClick opens the dropdown and clicks the option element.
	StrategyClick
)

// Strategies is the fallback order used by the selection engine.
var Strategies = [...]Strategy{StrategyValue, StrategyMatch, StrategyClick}

func (s Strategy) String() string {
	switch s {
	case StrategyValue:
		return "value"
	case StrategyMatch:
		return "match"
	case StrategyClick:
		return "click"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// Content is what a driver reads back from an element.
type Content struct {
	Text string
	HTML string
}

// Driver is a single browser page. Implementations are not safe for
// concurrent use.
type Driver interface {
	// Load navigates to url and returns once the DOM is parsed. It does not
	// wait for subresources.
	Load(ctx context.Context, url string) error
	// Options returns the raw entries of the select at locator, placeholders
	// included.
	Options(ctx context.Context, locator string) ([]branch.Option, error)
	// Select applies one strategy to choose value in the select at locator.
	Select(ctx context.Context, locator, value string, s Strategy) error
	// Read returns the text and outer HTML of the first element at locator.
	Read(ctx context.Context, locator string) (Content, error)
	Close() error
}
