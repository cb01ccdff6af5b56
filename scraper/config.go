package scraper

import (
	"github.com/hazyhaar/ifscdir/scraper/internal/checkpoint"
	"github.com/hazyhaar/ifscdir/scraper/internal/config"
	"github.com/hazyhaar/ifscdir/scraper/internal/page"
)

// Config is the top-level scraper configuration. Re-exported from internal.
type Config = config.Config

// TimingConfig holds every wait and retry bound.
type TimingConfig = config.TimingConfig

// Locators names the page elements the engine touches.
type Locators = page.Locators

// Driver is the page capability the engine drives.
type Driver = page.Driver

// Artifact describes one flushed JSON/CSV pair.
type Artifact = checkpoint.Artifact

// Ledger is the SQLite record of runs, checkpoints and failures.
type Ledger = checkpoint.Ledger

// Run is one ledger row.
type Run = checkpoint.Run

// Failure is one abandoned node in the ledger.
type Failure = checkpoint.Failure

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}

// NoWait returns timings with every delay disabled, for synchronous pages.
func NoWait() TimingConfig {
	return config.NoWait()
}

// OpenLedger opens or creates the SQLite ledger at path.
func OpenLedger(path string) (*Ledger, error) {
	return checkpoint.OpenLedger(path)
}

