package pwdriver

import (
	"errors"
	"fmt"
	"testing"

	pw "github.com/playwright-community/playwright-go"

	"github.com/hazyhaar/ifscdir/scraper/internal/page"
)

func TestMapErr(t *testing.T) {
	if err := mapErr(fmt.Errorf("goto: %w", pw.ErrTargetClosed)); !errors.Is(err, page.ErrClosed) {
		t.Errorf("target closed: got %v", err)
	}
	if err := mapErr(pw.ErrTimeout); errors.Is(err, page.ErrClosed) {
		t.Errorf("timeout mapped to closed: %v", err)
	}
}
