package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	target      TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	status      TEXT NOT NULL DEFAULT 'running',
	succeeded   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS checkpoints (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	tag        TEXT NOT NULL,
	records    INTEGER NOT NULL,
	json_path  TEXT NOT NULL,
	csv_path   TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_run ON checkpoints(run_id, id);
CREATE TABLE IF NOT EXISTS failures (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	level      TEXT NOT NULL,
	bank       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	district   TEXT NOT NULL DEFAULT '',
	branch     TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id, id);
`

// Run is one ledger row per scrape run.
type Run struct {
	ID          string
	Target      string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while running
	Status      string
	Succeeded   int
	Failed      int
	Checkpoints int
	LastTag     string
}

// Failure is one abandoned node.
type Failure struct {
	Level  string
	Path   []string // bank, state, district, branch labels down to Level
	Reason string
	At     time.Time
}

// Ledger persists run progress snapshots in SQLite.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (creating if needed) the ledger database at path.
// ":memory:" opens a private in-memory ledger.
func OpenLedger(path string) (*Ledger, error) {
	memory := path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("checkpoint: ledger mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: ledger open: %w", err)
	}
	if memory {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	for _, p := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("checkpoint: ledger %s: %w", p, err)
		}
	}
	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// StartRun inserts a running row.
func (l *Ledger) StartRun(ctx context.Context, id, target string, at time.Time) error {
	return l.exec(ctx,
		`INSERT INTO runs (id, target, started_at, status) VALUES (?, ?, ?, ?)`,
		id, target, at.UnixMilli(), StatusRunning)
}

// RecordCheckpoint logs a flushed artifact pair and the run's counters at
// that moment.
func (l *Ledger) RecordCheckpoint(ctx context.Context, runID string, a Artifact, succeeded, failed int, at time.Time) error {
	if err := l.exec(ctx,
		`INSERT INTO checkpoints (run_id, tag, records, json_path, csv_path, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, a.Tag, a.Records, a.JSONPath, a.CSVPath, at.UnixMilli()); err != nil {
		return err
	}
	return l.exec(ctx, `UPDATE runs SET succeeded = ?, failed = ? WHERE id = ?`, succeeded, failed, runID)
}

// RecordFailure logs an abandoned node.
func (l *Ledger) RecordFailure(ctx context.Context, runID string, f Failure) error {
	var p [4]string
	copy(p[:], f.Path)
	return l.exec(ctx,
		`INSERT INTO failures (run_id, level, bank, state, district, branch, reason, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, f.Level, p[0], p[1], p[2], p[3], f.Reason, f.At.UnixMilli())
}

// FinishRun closes the run row with its final status and counters.
func (l *Ledger) FinishRun(ctx context.Context, id, status string, succeeded, failed int, at time.Time) error {
	return l.exec(ctx,
		`UPDATE runs SET status = ?, succeeded = ?, failed = ?, finished_at = ? WHERE id = ?`,
		status, succeeded, failed, at.UnixMilli(), id)
}

// Runs returns the most recent runs first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT r.id, r.target, r.started_at, r.finished_at, r.status, r.succeeded, r.failed,
		       (SELECT COUNT(*) FROM checkpoints c WHERE c.run_id = r.id),
		       COALESCE((SELECT c.tag FROM checkpoints c WHERE c.run_id = r.id ORDER BY c.id DESC LIMIT 1), '')
		FROM runs r
		ORDER BY r.started_at DESC, r.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Target, &started, &finished, &r.Status,
			&r.Succeeded, &r.Failed, &r.Checkpoints, &r.LastTag); err != nil {
			return nil, fmt.Errorf("checkpoint: scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64).UTC()
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Failures returns a run's abandoned nodes in the order they happened.
func (l *Ledger) Failures(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT level, bank, state, district, branch, reason, created_at
		FROM failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list failures: %w", err)
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		var p [4]string
		var at int64
		if err := rows.Scan(&f.Level, &p[0], &p[1], &p[2], &p[3], &f.Reason, &at); err != nil {
			return nil, fmt.Errorf("checkpoint: scan failure: %w", err)
		}
		for _, s := range p {
			if s == "" {
				break
			}
			f.Path = append(f.Path, s)
		}
		f.At = time.UnixMilli(at).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}

// exec runs a statement, retrying a few times while SQLite reports BUSY.
func (l *Ledger) exec(ctx context.Context, query string, args ...any) error {
	const maxTries = 3
	var err error
	for i := range maxTries {
		if _, err = l.db.ExecContext(ctx, query, args...); err == nil || !isBusy(err) {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("checkpoint: ledger: %w", ctx.Err())
		case <-time.After(time.Duration(100*(i+1)) * time.Millisecond):
		}
	}
	if err != nil {
		return fmt.Errorf("checkpoint: ledger: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
