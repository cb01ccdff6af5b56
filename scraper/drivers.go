package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/ifscdir/scraper/internal/browser"
	"github.com/hazyhaar/ifscdir/scraper/internal/config"
	"github.com/hazyhaar/ifscdir/scraper/internal/fixture"
	"github.com/hazyhaar/ifscdir/scraper/internal/pwdriver"
)

// Engines accepted by browser.engine.
const (
	EngineRod        = "rod"
	EnginePlaywright = "playwright"
	EngineFixture    = "fixture"
)

// OpenDriver opens the page driver selected by cfg.Browser.Engine.
func OpenDriver(ctx context.Context, cfg *Config, logger *slog.Logger) (Driver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := cfg.Browser
	switch b.Engine {
	case EngineRod, "":
		d, err := browser.Open(ctx, browser.Config{
			RemoteURL:        b.Remote,
			ResourceBlocking: b.ResourceBlocking,
			Stealth:          browser.ParseStealth(b.Stealth),
			XvfbDisplay:      b.XvfbDisplay,
			UserAgent:        b.UserAgent,
			Logger:           logger,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	case EnginePlaywright:
		d, err := pwdriver.Open(playwrightConfig(b, logger))
		if err != nil {
			return nil, err
		}
		return d, nil
	case EngineFixture:
		if b.Fixture == "" {
			return nil, fmt.Errorf("scraper: fixture engine needs browser.fixture")
		}
		site, err := fixture.LoadSite(b.Fixture)
		if err != nil {
			return nil, err
		}
		return fixture.New(site, cfg.Target.Locators), nil
	}
	return nil, fmt.Errorf("scraper: unknown engine %q", b.Engine)
}

func playwrightConfig(b config.BrowserConfig, logger *slog.Logger) pwdriver.Config {
	return pwdriver.Config{
		Headless:         b.Stealth != "headful",
		UserAgent:        b.UserAgent,
		ResourceBlocking: b.ResourceBlocking,
		Install:          b.Install,
		Logger:           logger,
	}
}
