package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/ifscdir/scraper/internal/page"
)

func TestLoadFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ifsc.yaml")
	yml := `
browser:
  engine: playwright
  stealth: headful
  install: true
timing:
  select_settle: 1500ms
  populate_bank: -1s
checkpoint:
  dir: /tmp/ifsc
limit:
  banks: 5
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Target.URL != DefaultURL {
		t.Errorf("URL: got %q", cfg.Target.URL)
	}
	if cfg.Target.Locators.Bank != page.DefaultLocators().Bank {
		t.Errorf("bank locator not defaulted: %q", cfg.Target.Locators.Bank)
	}
	if cfg.Browser.Engine != "playwright" || cfg.Browser.Stealth != "headful" || !cfg.Browser.Install {
		t.Errorf("browser: %+v", cfg.Browser)
	}
	if len(cfg.Browser.ResourceBlocking) != 1 || cfg.Browser.ResourceBlocking[0] != "images" {
		t.Errorf("resource blocking: %v", cfg.Browser.ResourceBlocking)
	}
	if cfg.Timing.SelectSettle != 1500*time.Millisecond {
		t.Errorf("select_settle: got %v", cfg.Timing.SelectSettle)
	}
	if cfg.Timing.PopulateBank != -time.Second {
		t.Errorf("negative populate_bank should be kept: got %v", cfg.Timing.PopulateBank)
	}
	if cfg.Timing.PopulateState != 12*time.Second || cfg.Timing.NavigateAttempts != 3 {
		t.Errorf("timing defaults: %+v", cfg.Timing)
	}
	if cfg.Checkpoint.Every != 50 || cfg.Checkpoint.Dir != "/tmp/ifsc" {
		t.Errorf("checkpoint: %+v", cfg.Checkpoint)
	}
	if cfg.Limit.Banks != 5 {
		t.Errorf("limit: %+v", cfg.Limit)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFile: want error for missing file")
	}
}

func TestLocatorOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ifsc.yaml")
	yml := `
target:
  url: http://localhost:8080/
  locators:
    bank: "#bank"
    containers: ["#detail"]
`
	os.WriteFile(path, []byte(yml), 0o644)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	loc := cfg.Target.Locators
	if loc.Bank != "#bank" || loc.State != page.DefaultLocators().State {
		t.Errorf("locators: %+v", loc)
	}
	if len(loc.Containers) != 1 || loc.Containers[0] != "#detail" {
		t.Errorf("containers: %v", loc.Containers)
	}
}
