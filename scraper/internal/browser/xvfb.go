package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/ifscdir/scraper/internal/retry"
)

var errDisplayNotReady = errors.New("display socket not ready")

// displaySocket returns the X11 socket path for a display such as ":99".
func displaySocket(display string) string {
	n := strings.TrimPrefix(display, ":")
	if i := strings.IndexByte(n, '.'); i >= 0 {
		n = n[:i]
	}
	return filepath.Join("/tmp/.X11-unix", "X"+n)
}

// startXvfb runs a virtual display for headful mode and waits until its
// socket accepts clients, at most two seconds.
func (m *Manager) startXvfb(ctx context.Context) error {
	if m.xvfb != nil {
		return nil
	}
	display := m.cfg.XvfbDisplay
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1366x768x24", "-nolisten", "tcp", "-ac")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start Xvfb %s: %w", display, err)
	}
	m.xvfb = cmd

	sock := displaySocket(display)
	err := retry.Do(ctx, retry.Policy{Attempts: 20, Delay: 100 * time.Millisecond}, func(context.Context) error {
		if _, err := os.Stat(sock); err != nil {
			return errDisplayNotReady
		}
		return nil
	})
	if err != nil {
		m.stopXvfb()
		return fmt.Errorf("wait for %s: %w", sock, err)
	}
	m.cfg.Logger.Info("browser: display ready", "display", display, "pid", cmd.Process.Pid)
	return nil
}

func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if p := m.xvfb.Process; p != nil {
		p.Kill()
		m.xvfb.Wait()
	}
	m.xvfb = nil
	m.cfg.Logger.Debug("browser: display stopped", "display", m.cfg.XvfbDisplay)
}
