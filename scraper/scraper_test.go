package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/ifscdir/branch"
	"github.com/hazyhaar/ifscdir/scraper/internal/checkpoint"
	"github.com/hazyhaar/ifscdir/scraper/internal/fixture"
	"github.com/hazyhaar/ifscdir/scraper/internal/page"
	"github.com/hazyhaar/ifscdir/scraper/internal/sink"
)

// grid builds a site with every level fully populated. Branch IFSCs are
// BNK<bank letter>0<state><district><branch>.
func grid(banks, states, districts, branches int) *fixture.Site {
	site := &fixture.Site{}
	for b := 0; b < banks; b++ {
		letter := string(rune('A' + b))
		bank := fixture.Node{Code: "bank-" + letter, Label: "BANK " + letter}
		for s := 0; s < states; s++ {
			state := fixture.Node{Code: fmt.Sprintf("st%d", s), Label: fmt.Sprintf("STATE %d", s)}
			for d := 0; d < districts; d++ {
				district := fixture.Node{Code: fmt.Sprintf("di%d", d), Label: fmt.Sprintf("DISTRICT %d", d)}
				for br := 0; br < branches; br++ {
					district.Children = append(district.Children, fixture.Node{
						Code:   fmt.Sprintf("br%d", br),
						Label:  fmt.Sprintf("BRANCH %d", br),
						Detail: detail(fmt.Sprintf("BNK%s0%02d%02d%02d", letter, s, d, br), br),
					})
				}
				state.Children = append(state.Children, district)
			}
			bank.Children = append(bank.Children, state)
		}
		site.Banks = append(site.Banks, bank)
	}
	return site
}

func detail(ifsc string, n int) string {
	return fmt.Sprintf("<table>\n"+
		"<tr><td>IFSC Code: %s</td></tr>\n"+
		"<tr><td>MICR Code: 4002400%02d</td></tr>\n"+
		"<tr><td>Address: %d Station Road, Market Yard</td></tr>\n"+
		"<tr><td>Contact: 022 2656%04d</td></tr>\n"+
		"<tr><td>Branch: MAIN OFFICE %d</td></tr>\n"+
		"</table>", ifsc, n, n+1, n, n)
}

var fixedClock = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Target.URL = "fixture://directory"
	cfg.Timing = NoWait()
	cfg.Checkpoint.Dir = t.TempDir()
	return cfg
}

// recorder collects events in order.
type recorder struct {
	mu     sync.Mutex
	events []sink.Event
	// onRecord, when set, runs after each record event.
	onRecord func(n int)
	records  int
}

func (r *recorder) sink() Sink {
	return NewCallbackSink(func(_ context.Context, ev Event) error {
		r.mu.Lock()
		r.events = append(r.events, ev)
		if ev.Kind == sink.KindRecord {
			r.records++
		}
		n, hook := r.records, r.onRecord
		r.mu.Unlock()
		if ev.Kind == sink.KindRecord && hook != nil {
			hook(n)
		}
		return nil
	})
}

func (r *recorder) kinds(k sink.Kind) []sink.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sink.Event
	for _, ev := range r.events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

func run(t *testing.T, cfg *Config, site *fixture.Site, opts ...Option) (Summary, *fixture.Driver, error) {
	t.Helper()
	drv := fixture.New(site, cfg.Target.Locators)
	s := New(cfg, drv, append([]Option{WithClock(fixedClock)}, opts...)...)
	defer s.Close()
	sum, err := s.Run(context.Background())
	return sum, drv, err
}

func TestRunCapturesEveryBranch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Checkpoint.Every = 3
	rec := &recorder{}

	sum, _, err := run(t, cfg, grid(2, 1, 2, 2), WithSinks(rec.sink()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Succeeded != 8 || sum.Failed != 0 || sum.Records != 8 || sum.Banks != 2 {
		t.Errorf("summary: %+v", sum)
	}
	if sum.SuccessRate() != 1 {
		t.Errorf("success rate: %v", sum.SuccessRate())
	}

	got, err := checkpoint.LoadRecords(sum.Final.JSONPath)
	if err != nil {
		t.Fatal(err)
	}
	first := got[0]
	want := branch.Record{
		BankName:      "BANK A",
		State:         "STATE 0",
		District:      "DISTRICT 0",
		BranchName:    "BRANCH 0",
		IFSC:          "BNKA0000000",
		MICR:          "400240000",
		Address:       "1 Station Road, Market Yard",
		Contact:       "022 26560000",
		BranchDetails: "MAIN OFFICE 0",
		ScrapedAt:     fixedClock(),
	}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("first record (-want +got):\n%s", diff)
	}
	if last := got[7]; last.IFSC != "BNKB0000101" {
		t.Errorf("last record IFSC: %s", last.IFSC)
	}

	for _, name := range []string{
		"bank_list.json",
		"backup_3_records.json", "backup_6_records.csv",
		"progress_bank_1_of_2.json", "progress_bank_2_of_2.csv",
		"final.json", "final.csv",
	} {
		if _, err := os.Stat(filepath.Join(cfg.Checkpoint.Dir, name)); err != nil {
			t.Errorf("artifact %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Checkpoint.Dir, "backup_9_records.json")); err == nil {
		t.Error("unexpected backup_9 artifact")
	}

	if n := len(rec.kinds(sink.KindRecord)); n != 8 {
		t.Errorf("record events: %d", n)
	}
	if n := len(rec.kinds(sink.KindBankStarted)); n != 2 {
		t.Errorf("bank_started events: %d", n)
	}
	for _, ev := range rec.events {
		if ev.RunID != sum.RunID {
			t.Fatalf("event %s without run id", ev.Kind)
		}
	}
}

func TestCheckpointCadence(t *testing.T) {
	cfg := testConfig(t)
	cfg.Checkpoint.Every = 5
	rec := &recorder{}
	if _, _, err := run(t, cfg, grid(1, 2, 2, 4), WithSinks(rec.sink())); err != nil {
		t.Fatal(err)
	}
	var backups []string
	for _, ev := range rec.kinds(sink.KindCheckpoint) {
		backups = append(backups, ev.Tag)
	}
	want := []string{"backup_5_records", "backup_10_records", "backup_15_records", "progress_bank_1_of_1", "final"}
	if diff := cmp.Diff(want, backups); diff != "" {
		t.Errorf("checkpoint tags (-want +got):\n%s", diff)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	site := grid(2, 2, 1, 3)
	a, _, err := run(t, testConfig(t), site)
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := run(t, testConfig(t), site)
	if err != nil {
		t.Fatal(err)
	}
	ra, _ := checkpoint.LoadRecords(a.Final.JSONPath)
	rb, _ := checkpoint.LoadRecords(b.Final.JSONPath)
	if len(ra) != 12 {
		t.Fatalf("records: %d", len(ra))
	}
	if diff := cmp.Diff(ra, rb); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}
	if a.RunID == b.RunID {
		t.Error("run ids should differ")
	}
}

func TestFailingDistrictDoesNotStopSiblings(t *testing.T) {
	site := grid(1, 1, 3, 2)
	site.Banks[0].Children[0].Children[1].FailSelect = -1
	cfg := testConfig(t)
	rec := &recorder{}

	sum, _, err := run(t, cfg, site, WithSinks(rec.sink()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Succeeded != 4 || sum.Failed != 1 {
		t.Errorf("summary: %+v", sum)
	}
	if sum.FailedByLevel["district"] != 1 {
		t.Errorf("failed by level: %v", sum.FailedByLevel)
	}

	fails := rec.kinds(sink.KindFailure)
	if len(fails) != 1 {
		t.Fatalf("failure events: %+v", fails)
	}
	if diff := cmp.Diff([]string{"BANK A", "STATE 0", "DISTRICT 1"}, fails[0].Path); diff != "" {
		t.Errorf("failure path (-want +got):\n%s", diff)
	}
	if n := len(rec.kinds(sink.KindRetry)); n != cfg.Timing.SelectRetries {
		t.Errorf("retry events: got %d, want %d", n, cfg.Timing.SelectRetries)
	}

	got, _ := checkpoint.LoadRecords(sum.Final.JSONPath)
	for _, r := range got {
		if r.District == "DISTRICT 1" {
			t.Errorf("record from failed district: %+v", r)
		}
	}
	if got[len(got)-1].District != "DISTRICT 2" {
		t.Errorf("sibling after failure not visited: %+v", got[len(got)-1])
	}
}

func TestTransientSelectionFailureIsRetried(t *testing.T) {
	site := grid(1, 1, 1, 2)
	// One full pass of strategies fails, the retry succeeds.
	site.Banks[0].Children[0].Children[0].Children[1].FailSelect = len(page.Strategies)
	site.LoadFailures = 2
	rec := &recorder{}

	sum, drv, err := run(t, testConfig(t), site, WithSinks(rec.sink()))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Succeeded != 2 || sum.Failed != 0 {
		t.Errorf("summary: %+v", sum)
	}
	retries := rec.kinds(sink.KindRetry)
	if len(retries) != 3 {
		t.Fatalf("retry events: %+v", retries)
	}
	// Two navigation retries, then one branch selection retry.
	if retries[2].Level != "branch" || retries[2].Attempt != 1 {
		t.Errorf("selection retry: %+v", retries[2])
	}
	// Initial load, one reload per bank, state and district node, one per
	// branch.
	if got := drv.Loads(); got != 1+3+2 {
		t.Errorf("loads: %d", got)
	}
}

func TestDetailWithoutRoutingCode(t *testing.T) {
	site := grid(1, 1, 1, 3)
	site.Banks[0].Children[0].Children[0].Children[1].Detail = "<p>Address: 7 Lake View, Sector 4\nContact: 0120 4455667</p>"
	cfg := testConfig(t)
	rec := &recorder{}

	sum, _, err := run(t, cfg, site, WithSinks(rec.sink()))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Succeeded != 2 || sum.Failed != 1 || sum.FailedByLevel["branch"] != 1 {
		t.Errorf("summary: %+v", sum)
	}
	fails := rec.kinds(sink.KindFailure)
	if len(fails) != 1 || fails[0].Error != ErrNoRoutingCode.Error() {
		t.Fatalf("failure events: %+v", fails)
	}
	if fails[0].Sample == "" || len([]rune(fails[0].Sample)) > 500 {
		t.Errorf("sample: %q", fails[0].Sample)
	}
	got, _ := checkpoint.LoadRecords(sum.Final.JSONPath)
	if len(got) != 2 {
		t.Errorf("records: %d", len(got))
	}
}

func TestEmptyLevelIsSoft(t *testing.T) {
	site := grid(1, 1, 2, 1)
	site.Banks[0].Children[0].Children[0].Children = nil
	rec := &recorder{}

	sum, _, err := run(t, testConfig(t), site, WithSinks(rec.sink()))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Succeeded != 1 || sum.Failed != 0 {
		t.Errorf("summary: %+v", sum)
	}
	empty := rec.kinds(sink.KindEmptyLevel)
	if len(empty) != 1 || empty[0].Level != "branch" {
		t.Errorf("empty_level events: %+v", empty)
	}
	if len(rec.kinds(sink.KindPopulateTimeout)) != 1 {
		t.Errorf("populate_timeout events: %+v", rec.kinds(sink.KindPopulateTimeout))
	}
}

func TestLimitBanks(t *testing.T) {
	cfg := testConfig(t)
	cfg.Limit.Banks = 1
	sum, _, err := run(t, cfg, grid(3, 1, 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Banks != 1 || sum.Succeeded != 2 {
		t.Errorf("summary: %+v", sum)
	}
	list, _ := os.ReadFile(filepath.Join(cfg.Checkpoint.Dir, checkpoint.BankListFile))
	if len(list) == 0 {
		t.Error("bank list missing")
	}
}

func TestResumeSkipsCapturedLeaves(t *testing.T) {
	site := grid(2, 1, 1, 2)

	first := testConfig(t)
	first.Limit.Banks = 1
	a, _, err := run(t, first, site)
	if err != nil {
		t.Fatal(err)
	}

	second := testConfig(t)
	second.Resume = a.Final.JSONPath
	b, drv, err := run(t, second, site)
	if err != nil {
		t.Fatal(err)
	}
	if b.Skipped != 2 || b.Succeeded != 2 || b.Records != 4 {
		t.Errorf("resumed summary: %+v", b)
	}
	// Skipped leaves are never reloaded: the initial load, three inner
	// nodes per bank, and the two branches of bank B.
	if got := drv.Loads(); got != 1+3*2+2 {
		t.Errorf("loads: %d", got)
	}

	got, _ := checkpoint.LoadRecords(b.Final.JSONPath)
	full, _, _ := run(t, testConfig(t), site)
	want, _ := checkpoint.LoadRecords(full.Final.JSONPath)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resumed records differ from a full run (-want +got):\n%s", diff)
	}
}

func TestResumeMissingFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Resume = filepath.Join(t.TempDir(), "nope.json")
	if _, _, err := run(t, cfg, grid(1, 1, 1, 1)); err == nil {
		t.Error("Run: want error for missing resume file")
	}
}

func TestDriverLossFlushesRecovery(t *testing.T) {
	cfg := testConfig(t)
	ledger, err := OpenLedger(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()

	site := grid(1, 2, 2, 2)
	drv := fixture.New(site, cfg.Target.Locators)
	rec := &recorder{onRecord: func(n int) {
		if n == 3 {
			drv.Kill()
		}
	}}
	s := New(cfg, drv, WithClock(fixedClock), WithSinks(rec.sink()), WithLedger(ledger))
	defer s.Close()

	sum, err := s.Run(context.Background())
	if !errors.Is(err, page.ErrClosed) {
		t.Fatalf("Run: got %v, want ErrClosed", err)
	}
	if sum.Succeeded != 3 || sum.Failed != 0 {
		t.Errorf("summary: %+v", sum)
	}
	if sum.Final.Tag != checkpoint.TagRecovery {
		t.Errorf("final artifact: %+v", sum.Final)
	}
	got, err := checkpoint.LoadRecords(filepath.Join(cfg.Checkpoint.Dir, "error_recovery.json"))
	if err != nil || len(got) != 3 {
		t.Errorf("recovery artifact: %d records, %v", len(got), err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Checkpoint.Dir, "final.json")); err == nil {
		t.Error("final artifact written after fatal error")
	}

	runs, err := ledger.Runs(context.Background(), 5)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ledger runs: %v %v", runs, err)
	}
	if runs[0].Status != checkpoint.StatusFailed || runs[0].LastTag != checkpoint.TagRecovery {
		t.Errorf("ledger run: %+v", runs[0])
	}
	fin := rec.kinds(sink.KindRunFinished)
	if len(fin) != 1 || fin[0].Error == "" {
		t.Errorf("run_finished: %+v", fin)
	}
}

func TestFinalFlushFailureClosesLedgerRun(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Checkpoint.Dir = filepath.Join(blocker, "out")

	ledger, err := OpenLedger(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	sum, _, err := run(t, cfg, grid(1, 1, 1, 2), WithLedger(ledger), WithLogger(logger))
	if err == nil || !strings.Contains(err.Error(), "final flush") {
		t.Fatalf("Run: got %v, want final flush error", err)
	}
	if sum.Succeeded != 2 {
		t.Errorf("summary: %+v", sum)
	}
	runs, err := ledger.Runs(context.Background(), 5)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ledger runs: %v %v", runs, err)
	}
	if runs[0].Status != checkpoint.StatusFailed || runs[0].FinishedAt.IsZero() {
		t.Errorf("ledger run: %+v", runs[0])
	}
	if !strings.Contains(logs.String(), "scraper: final flush failed") {
		t.Errorf("final flush failure not logged:\n%s", logs.String())
	}
}

func TestCancelledRunFlushesRecovery(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drv := fixture.New(grid(1, 1, 1, 4), cfg.Target.Locators)
	rec := &recorder{onRecord: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	s := New(cfg, drv, WithClock(fixedClock), WithSinks(rec.sink()))
	defer s.Close()

	sum, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: got %v, want context.Canceled", err)
	}
	if sum.Succeeded != 2 || sum.Failed != 0 || sum.Final.Records != 2 {
		t.Errorf("summary: %+v", sum)
	}
}

func TestSuccessRate(t *testing.T) {
	if r := (Summary{}).SuccessRate(); r != 0 {
		t.Errorf("empty: %v", r)
	}
	if r := (Summary{Succeeded: 3, Failed: 1}).SuccessRate(); r != 0.75 {
		t.Errorf("3/4: %v", r)
	}
}
