// Package config defines the scraper configuration and parses it from
// YAML files with defaults applied.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/ifscdir/scraper/internal/page"
)

// DefaultURL is the directory site the locators were written for.
const DefaultURL = "https://bankifsccode.com/"

// DefaultUserAgent is a common desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config is the top-level scraper configuration.
type Config struct {
	Target     TargetConfig     `yaml:"target"`
	Browser    BrowserConfig    `yaml:"browser"`
	Timing     TimingConfig     `yaml:"timing"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Limit      LimitConfig      `yaml:"limit"`
	// Resume is a JSON checkpoint whose records seed the run. Leaves
	// already present are not revisited.
	Resume string `yaml:"resume"`
}

// TargetConfig locates the page and its elements.
type TargetConfig struct {
	URL      string        `yaml:"url"`
	Locators page.Locators `yaml:"locators"`
}

// BrowserConfig selects and tunes the page driver.
type BrowserConfig struct {
	Engine           string   `yaml:"engine"` // rod | playwright | fixture
	Remote           string   `yaml:"remote"`
	Stealth          string   `yaml:"stealth"` // headless | headful
	XvfbDisplay      string   `yaml:"xvfb_display"`
	ResourceBlocking []string `yaml:"resource_blocking"`
	UserAgent        string   `yaml:"user_agent"`
	// Install downloads the Playwright Chromium build before launching.
	// Playwright engine only.
	Install bool `yaml:"install"`
	// Fixture is the YAML site file used by the fixture engine.
	Fixture string `yaml:"fixture"`
}

// TimingConfig holds every wait and retry bound of the engine.
type TimingConfig struct {
	NavigateAttempts   int           `yaml:"navigate_attempts"`
	NavigateTimeout    time.Duration `yaml:"navigate_timeout"`
	NavigateSettle     time.Duration `yaml:"navigate_settle"`
	NavigateRetryDelay time.Duration `yaml:"navigate_retry_delay"`
	MinRequestInterval time.Duration `yaml:"min_request_interval"`
	AfterNavigate      time.Duration `yaml:"after_navigate"`
	SelectSettle       time.Duration `yaml:"select_settle"`
	SelectRetries      int           `yaml:"select_retries"`
	SelectRetryDelay   time.Duration `yaml:"select_retry_delay"`
	PopulateBank       time.Duration `yaml:"populate_bank"`
	PopulateState      time.Duration `yaml:"populate_state"`
	PopulateDistrict   time.Duration `yaml:"populate_district"`
	OptionsPresence    time.Duration `yaml:"options_presence"`
	ExtractSettle      time.Duration `yaml:"extract_settle"`
	Poll               time.Duration `yaml:"poll"`
}

// CheckpointConfig controls artifact output.
type CheckpointConfig struct {
	Dir    string `yaml:"dir"`
	Every  int    `yaml:"every"`
	Ledger string `yaml:"ledger"` // SQLite path; empty disables
}

// LimitConfig bounds a run.
type LimitConfig struct {
	// Banks processes only the first N banks. 0 means all.
	Banks int `yaml:"banks"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero fields. Negative durations are kept and mean
// "no wait", which tests and fixture runs rely on.
func (c *Config) ApplyDefaults() {
	if c.Target.URL == "" {
		c.Target.URL = DefaultURL
	}
	c.Target.Locators = c.Target.Locators.WithDefaults()

	if c.Browser.Engine == "" {
		c.Browser.Engine = "rod"
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"images"}
	}
	if c.Browser.UserAgent == "" {
		c.Browser.UserAgent = DefaultUserAgent
	}

	t := &c.Timing
	if t.NavigateAttempts <= 0 {
		t.NavigateAttempts = 3
	}
	if t.SelectRetries == 0 {
		t.SelectRetries = 3
	}
	setDuration(&t.NavigateTimeout, 120*time.Second)
	setDuration(&t.NavigateSettle, 2*time.Second)
	setDuration(&t.NavigateRetryDelay, 3*time.Second)
	setDuration(&t.MinRequestInterval, 2*time.Second)
	setDuration(&t.AfterNavigate, time.Second)
	setDuration(&t.SelectSettle, 4*time.Second)
	setDuration(&t.SelectRetryDelay, 2*time.Second)
	setDuration(&t.PopulateBank, 15*time.Second)
	setDuration(&t.PopulateState, 12*time.Second)
	setDuration(&t.PopulateDistrict, 12*time.Second)
	setDuration(&t.OptionsPresence, 15*time.Second)
	setDuration(&t.ExtractSettle, 4*time.Second)
	setDuration(&t.Poll, 250*time.Millisecond)

	if c.Checkpoint.Dir == "" {
		c.Checkpoint.Dir = "out"
	}
	if c.Checkpoint.Every <= 0 {
		c.Checkpoint.Every = 50
	}
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

// NoWait returns a configuration with every delay disabled. Used with the
// fixture engine, where the page reacts synchronously.
func NoWait() TimingConfig {
	const none = -1
	return TimingConfig{
		NavigateAttempts:   3,
		NavigateTimeout:    none,
		NavigateSettle:     none,
		NavigateRetryDelay: none,
		MinRequestInterval: none,
		AfterNavigate:      none,
		SelectSettle:       none,
		SelectRetries:      3,
		SelectRetryDelay:   none,
		PopulateBank:       none,
		PopulateState:      none,
		PopulateDistrict:   none,
		OptionsPresence:    none,
		ExtractSettle:      none,
		Poll:               time.Millisecond,
	}
}
