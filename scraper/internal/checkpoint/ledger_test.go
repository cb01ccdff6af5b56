package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/ifscdir/branch"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(":memory:")
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedgerRunLifecycle(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { now = now.Add(time.Second); return now }

	c := New(Config{Dir: t.TempDir(), Ledger: l, Now: clock})
	if err := c.StartRun(ctx, "run-1", "https://bankifsccode.com/"); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if _, err := c.Flush(ctx, sampleRecords(2), BankTag(1, 3), 2, 1); err != nil {
		t.Fatal(err)
	}
	c.Failure(ctx, branch.District, []string{"HDFC BANK", "MAHARASHTRA", "PUNE"}, "selection failed")
	if _, err := c.Flush(ctx, sampleRecords(2), TagFinal, 2, 1); err != nil {
		t.Fatal(err)
	}
	if err := c.FinishRun(ctx, StatusDone, 2, 1); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := l.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs: got %d, want 1", len(runs))
	}
	r := runs[0]
	if r.Status != StatusDone || r.Succeeded != 2 || r.Failed != 1 {
		t.Errorf("run row: %+v", r)
	}
	if r.Checkpoints != 2 || r.LastTag != TagFinal {
		t.Errorf("checkpoints: got %d last %q", r.Checkpoints, r.LastTag)
	}
	if r.FinishedAt.IsZero() || !r.FinishedAt.After(r.StartedAt) {
		t.Errorf("timestamps: started %v finished %v", r.StartedAt, r.FinishedAt)
	}

	fails, err := l.Failures(ctx, "run-1")
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(fails) != 1 || fails[0].Level != "district" || len(fails[0].Path) != 3 || fails[0].Path[2] != "PUNE" {
		t.Errorf("failures: %+v", fails)
	}
}

func TestCheckpointerWithoutLedger(t *testing.T) {
	c := New(Config{Dir: t.TempDir()})
	ctx := context.Background()
	if err := c.StartRun(ctx, "r", "u"); err != nil {
		t.Fatal(err)
	}
	c.Failure(ctx, branch.Branch, nil, "x")
	if err := c.FinishRun(ctx, StatusFailed, 0, 1); err != nil {
		t.Fatal(err)
	}
}
