// Package checkpoint persists the accumulated record set of a run as JSON
// and CSV artifacts, on a fixed cadence and at bank boundaries, and keeps
// an optional SQLite ledger of run progress.
//
// Every flush rewrites the full record set, so the newest artifact always
// contains everything captured so far. Files are written atomically.
package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/hazyhaar/ifscdir/branch"
)

// Fixed artifact tags.
const (
	TagFinal    = "final"
	TagRecovery = "error_recovery"
	// BankListFile holds the bank options read at the start of a run.
	BankListFile = "bank_list.json"
)

// BackupTag names the cadence flush taken after n successful records.
func BackupTag(n int) string { return fmt.Sprintf("backup_%d_records", n) }

// BankTag names the flush taken after bank i (1-based) of total.
func BankTag(i, total int) string { return fmt.Sprintf("progress_bank_%d_of_%d", i, total) }

// Artifact describes one flushed JSON/CSV pair.
type Artifact struct {
	Tag      string
	JSONPath string
	CSVPath  string
	Records  int
}

// Config configures a Checkpointer.
type Config struct {
	Dir string
	// Every is the cadence, in successful records. Default: 50.
	Every int
	// Ledger, when set, receives run, checkpoint and failure rows.
	Ledger *Ledger
	Logger *slog.Logger
	Now    func() time.Time
}

// Checkpointer writes artifacts for one run at a time.
type Checkpointer struct {
	cfg   Config
	runID string
}

// New creates a Checkpointer.
func New(cfg Config) *Checkpointer {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.Every <= 0 {
		cfg.Every = 50
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Checkpointer{cfg: cfg}
}

// Every returns the configured cadence.
func (c *Checkpointer) Every() int { return c.cfg.Every }

// Due reports whether a cadence flush is owed after successes records.
func (c *Checkpointer) Due(successes int) bool {
	return successes > 0 && successes%c.cfg.Every == 0
}

// StartRun binds the Checkpointer to a run and opens its ledger row.
func (c *Checkpointer) StartRun(ctx context.Context, runID, target string) error {
	c.runID = runID
	if c.cfg.Ledger == nil {
		return nil
	}
	return c.cfg.Ledger.StartRun(ctx, runID, target, c.cfg.Now())
}

// Flush writes <tag>.json and <tag>.csv with the full record set. The
// counters are stored alongside in the ledger.
func (c *Checkpointer) Flush(ctx context.Context, records []branch.Record, tag string, succeeded, failed int) (Artifact, error) {
	a := Artifact{
		Tag:      tag,
		JSONPath: filepath.Join(c.cfg.Dir, tag+".json"),
		CSVPath:  filepath.Join(c.cfg.Dir, tag+".csv"),
		Records:  len(records),
	}
	if err := writeRecordsJSON(a.JSONPath, records); err != nil {
		return a, err
	}
	if err := writeRecordsCSV(a.CSVPath, records); err != nil {
		return a, err
	}
	c.cfg.Logger.Info("checkpoint: flushed", "tag", tag, "records", len(records), "json", a.JSONPath)

	if c.cfg.Ledger != nil && c.runID != "" {
		if err := c.cfg.Ledger.RecordCheckpoint(ctx, c.runID, a, succeeded, failed, c.cfg.Now()); err != nil {
			c.cfg.Logger.Warn("checkpoint: ledger write failed", "tag", tag, "error", err)
		}
	}
	return a, nil
}

// WriteBankList saves the bank options of the run.
func (c *Checkpointer) WriteBankList(banks []branch.Option) (string, error) {
	path := filepath.Join(c.cfg.Dir, BankListFile)
	return path, writeOptionsJSON(path, banks)
}

// Failure records an abandoned node in the ledger, if any.
func (c *Checkpointer) Failure(ctx context.Context, level branch.Level, path []string, reason string) {
	if c.cfg.Ledger == nil || c.runID == "" {
		return
	}
	f := Failure{Level: level.String(), Path: path, Reason: reason, At: c.cfg.Now()}
	if err := c.cfg.Ledger.RecordFailure(ctx, c.runID, f); err != nil {
		c.cfg.Logger.Warn("checkpoint: ledger failure row", "error", err)
	}
}

// FinishRun closes the ledger row with status and final counters.
func (c *Checkpointer) FinishRun(ctx context.Context, status string, succeeded, failed int) error {
	if c.cfg.Ledger == nil || c.runID == "" {
		return nil
	}
	return c.cfg.Ledger.FinishRun(ctx, c.runID, status, succeeded, failed, c.cfg.Now())
}
