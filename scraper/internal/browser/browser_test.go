package browser

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/go-rod/rod/lib/cdp"

	"github.com/hazyhaar/ifscdir/scraper/internal/page"
)

func TestMapErr(t *testing.T) {
	gone := []error{
		fmt.Errorf("eval: %w", cdp.ErrSessionNotFound),
		&cdp.Error{Code: -32000, Message: "Target closed."},
		fmt.Errorf("read frame: %w", io.EOF),
		fmt.Errorf("write: %w", net.ErrClosed),
		errors.New("write tcp 127.0.0.1:50412->127.0.0.1:9222: use of closed network connection"),
	}
	for _, err := range gone {
		if got := mapErr(err); !errors.Is(got, page.ErrClosed) {
			t.Errorf("mapErr(%v): got %v, want ErrClosed", err, got)
		}
	}

	for _, err := range []error{errors.New("timeout"), cdp.ErrCtxDestroyed, cdp.ErrObjNotFound} {
		if got := mapErr(err); got != err {
			t.Errorf("mapErr(%v) should pass through, got %v", err, got)
		}
	}
}

func TestCSSString(t *testing.T) {
	if got := cssString(`a"b\c`); got != `a\"b\\c` {
		t.Errorf("cssString: %s", got)
	}
}

func TestParseStealth(t *testing.T) {
	if ParseStealth("headful") != LevelHeadful || ParseStealth("") != LevelHeadless {
		t.Error("ParseStealth")
	}
	if LevelHeadful.String() != "headful" {
		t.Error("String")
	}
}

func TestDisplaySocket(t *testing.T) {
	for in, want := range map[string]string{
		":99":  "/tmp/.X11-unix/X99",
		":1.0": "/tmp/.X11-unix/X1",
		"99":   "/tmp/.X11-unix/X99",
	} {
		if got := displaySocket(in); got != want {
			t.Errorf("displaySocket(%q) = %q, want %q", in, got, want)
		}
	}
}
