// Package scraper walks the bank → state → district → branch dropdown tree
// of the directory page and captures one record per branch.
//
// The walk is lazy: children are read only after their parent has been
// selected on a freshly loaded page. A failure at any node is counted and
// the walk moves on to the next sibling; only a lost browser or a
// cancelled context ends the run, after an emergency checkpoint.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/ifscdir/branch"
	"github.com/hazyhaar/ifscdir/scraper/internal/checkpoint"
	"github.com/hazyhaar/ifscdir/scraper/internal/extract"
	"github.com/hazyhaar/ifscdir/scraper/internal/navigate"
	"github.com/hazyhaar/ifscdir/scraper/internal/page"
	"github.com/hazyhaar/ifscdir/scraper/internal/retry"
	"github.com/hazyhaar/ifscdir/scraper/internal/selection"
	"github.com/hazyhaar/ifscdir/scraper/internal/sink"
)

// ErrNoRoutingCode means a detail block was read but held no valid IFSC.
var ErrNoRoutingCode = errors.New("scraper: no routing code in detail block")

// Summary reports the outcome of a run.
type Summary struct {
	RunID     string
	Banks     int
	Succeeded int
	Failed    int
	// FailedByLevel splits Failed by the level of the abandoned node.
	FailedByLevel map[string]int
	// Skipped counts leaves already present in the resume set.
	Skipped int
	// Records is the size of the final record set, resumed records included.
	Records int
	Final   Artifact
	Elapsed time.Duration
}

// SuccessRate is Succeeded over attempted nodes, in [0, 1].
func (s Summary) SuccessRate() float64 {
	total := s.Succeeded + s.Failed
	if total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(total)
}

// Scraper runs the traversal over one page driver.
type Scraper struct {
	cfg    *Config
	drv    page.Driver
	sinks  []Sink
	events *sink.Router
	ledger *checkpoint.Ledger
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Scraper) { s.logger = l } }

// WithSinks sets the event sinks.
func WithSinks(sinks ...Sink) Option {
	return func(s *Scraper) { s.sinks = append(s.sinks, sinks...) }
}

// WithLedger records runs, checkpoints and failures in l.
func WithLedger(l *Ledger) Option { return func(s *Scraper) { s.ledger = l } }

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option { return func(s *Scraper) { s.now = now } }

// New creates a Scraper driving drv. The caller owns drv and closes it.
func New(cfg *Config, drv Driver, opts ...Option) *Scraper {
	s := &Scraper{
		cfg:    cfg,
		drv:    drv,
		logger: slog.Default(),
		now:    time.Now,
		newID:  newRunID,
	}
	for _, o := range opts {
		o(s)
	}
	s.events = sink.NewRouter(s.logger, s.sinks...)
	return s
}

// Close releases the event sinks.
func (s *Scraper) Close() error { return s.events.Close() }

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// runState is the mutable state of one run. It is passed explicitly to
// every step of the walk.
type runState struct {
	records   []branch.Record
	seen      map[string]bool
	succeeded int
	failed    int
	failedBy  map[branch.Level]int
	skipped   int
	banks     int
}

func (st *runState) summary(runID string, elapsed time.Duration) Summary {
	by := make(map[string]int, len(st.failedBy))
	for l, n := range st.failedBy {
		by[l.String()] = n
	}
	return Summary{
		RunID:         runID,
		Banks:         st.banks,
		Succeeded:     st.succeeded,
		Failed:        st.failed,
		FailedByLevel: by,
		Skipped:       st.skipped,
		Records:       len(st.records),
		Elapsed:       elapsed,
	}
}

// walker holds the per-run engine components.
type walker struct {
	runID  string
	cfg    *Config
	nav    *navigate.Controller
	sel    *selection.Engine
	ext    *extract.Extractor
	ckpt   *checkpoint.Checkpointer
	events sink.Sink
	logger *slog.Logger
	now    func() time.Time
}

func (s *Scraper) walker(runID string) *walker {
	t := s.cfg.Timing
	logger := s.logger.With("run_id", runID)
	events := sink.Stamped{Next: s.events, RunID: runID}
	return &walker{
		runID: runID,
		cfg:   s.cfg,
		nav: navigate.New(s.drv, navigate.Config{
			URL:         s.cfg.Target.URL,
			Attempts:    t.NavigateAttempts,
			Timeout:     t.NavigateTimeout,
			Settle:      t.NavigateSettle,
			RetryDelay:  t.NavigateRetryDelay,
			MinInterval: t.MinRequestInterval,
			Events:      events,
			Logger:      logger,
		}),
		sel: selection.New(s.drv, selection.Config{
			Locators: s.cfg.Target.Locators,
			Settle:   t.SelectSettle,
			Populate: map[branch.Level]time.Duration{
				branch.Bank:     t.PopulateBank,
				branch.State:    t.PopulateState,
				branch.District: t.PopulateDistrict,
			},
			Presence: t.OptionsPresence,
			Poll:     t.Poll,
			Events:   events,
			Logger:   logger,
		}),
		ext: extract.New(s.drv, extract.Config{
			Containers: s.cfg.Target.Locators.Containers,
			Settle:     t.ExtractSettle,
			Logger:     logger,
		}),
		ckpt: checkpoint.New(checkpoint.Config{
			Dir:    s.cfg.Checkpoint.Dir,
			Every:  s.cfg.Checkpoint.Every,
			Ledger: s.ledger,
			Logger: logger,
			Now:    s.now,
		}),
		events: events,
		logger: logger,
		now:    s.now,
	}
}

// Run performs one full traversal. On a fatal error the records captured
// so far are flushed under the error_recovery tag before the error is
// returned.
func (s *Scraper) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	w := s.walker(s.newID())
	st := &runState{seen: make(map[string]bool), failedBy: make(map[branch.Level]int)}

	if s.cfg.Resume != "" {
		recs, err := checkpoint.LoadRecords(s.cfg.Resume)
		if err != nil {
			return Summary{RunID: w.runID}, fmt.Errorf("scraper: resume: %w", err)
		}
		for _, r := range recs {
			if k := r.Key(); !st.seen[k] {
				st.seen[k] = true
				st.records = append(st.records, r)
			}
		}
		w.logger.Info("scraper: resuming", "from", s.cfg.Resume, "records", len(st.records))
	}

	if err := w.ckpt.StartRun(ctx, w.runID, s.cfg.Target.URL); err != nil {
		w.logger.Warn("scraper: ledger start failed", "error", err)
	}
	w.events.Emit(ctx, sink.Event{Kind: sink.KindRunStarted})
	w.logger.Info("scraper: run started", "url", s.cfg.Target.URL)

	if err := w.walk(ctx, st); err != nil {
		// The run context may be cancelled; the recovery flush must still land.
		bg := context.WithoutCancel(ctx)
		sum := st.summary(w.runID, time.Since(start))
		if a, ferr := w.flush(bg, st, checkpoint.TagRecovery); ferr != nil {
			w.logger.Error("scraper: recovery flush failed", "error", ferr)
		} else {
			sum.Final = a
		}
		if ferr := w.ckpt.FinishRun(bg, checkpoint.StatusFailed, st.succeeded, st.failed); ferr != nil {
			w.logger.Warn("scraper: ledger finish failed", "error", ferr)
		}
		w.events.Emit(bg, sink.Event{Kind: sink.KindRunFinished, Succeeded: st.succeeded, Failed: st.failed, Error: err.Error()})
		w.logger.Error("scraper: run aborted", "error", err, "succeeded", st.succeeded, "failed", st.failed)
		return sum, fmt.Errorf("scraper: run %s: %w", w.runID, err)
	}

	sum := st.summary(w.runID, time.Since(start))
	a, err := w.flush(ctx, st, checkpoint.TagFinal)
	if err != nil {
		if ferr := w.ckpt.FinishRun(ctx, checkpoint.StatusFailed, st.succeeded, st.failed); ferr != nil {
			w.logger.Warn("scraper: ledger finish failed", "error", ferr)
		}
		w.logger.Error("scraper: final flush failed", "error", err)
		return sum, fmt.Errorf("scraper: final flush: %w", err)
	}
	sum.Final = a
	if err := w.ckpt.FinishRun(ctx, checkpoint.StatusDone, st.succeeded, st.failed); err != nil {
		w.logger.Warn("scraper: ledger finish failed", "error", err)
	}
	w.events.Emit(ctx, sink.Event{Kind: sink.KindRunFinished, Succeeded: st.succeeded, Failed: st.failed})
	w.logger.Info("scraper: run finished",
		"succeeded", st.succeeded, "failed", st.failed, "skipped", st.skipped,
		"records", len(st.records), "success_rate", sum.SuccessRate(), "elapsed", sum.Elapsed)
	return sum, nil
}

// walk reads the bank list and visits each bank subtree. It returns only
// fatal errors.
func (w *walker) walk(ctx context.Context, st *runState) error {
	if err := w.nav.Load(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	banks, err := w.sel.Options(ctx, branch.Bank)
	if err != nil {
		return fmt.Errorf("bank options: %w", err)
	}
	if path, err := w.ckpt.WriteBankList(banks); err != nil {
		w.logger.Warn("scraper: bank list not written", "error", err)
	} else {
		w.logger.Info("scraper: banks found", "count", len(banks), "file", path)
	}

	if n := w.cfg.Limit.Banks; n > 0 && n < len(banks) {
		w.logger.Info("scraper: limiting run", "banks", n, "of", len(banks))
		banks = banks[:n]
	}
	st.banks = len(banks)

	for i, bank := range banks {
		w.events.Emit(ctx, sink.Event{
			Kind:  sink.KindBankStarted,
			Level: branch.Bank.String(),
			Path:  []string{bank.Label},
			Index: i + 1,
			Total: len(banks),
		})
		w.logger.Info("scraper: bank", "index", i+1, "total", len(banks), "bank", bank.Label)

		if err := w.visit(ctx, st, branch.Bank, branch.Path{Bank: bank}); err != nil {
			return err
		}
		if len(st.records) > 0 {
			if _, err := w.flush(ctx, st, checkpoint.BankTag(i+1, len(banks))); err != nil {
				w.logger.Error("scraper: bank checkpoint failed", "error", err)
			}
		}
	}
	return nil
}

// visit processes the node at level whose selection chain is p.
func (w *walker) visit(ctx context.Context, st *runState, level branch.Level, p branch.Path) error {
	if level == branch.Branch {
		return w.leaf(ctx, st, p)
	}

	if err := w.reach(ctx, p, level); err != nil {
		return w.fail(ctx, st, level, p, err, page.Content{})
	}
	next, _ := level.Next()
	children, err := w.sel.Options(ctx, next)
	if err != nil {
		return w.fail(ctx, st, level, p, err, page.Content{})
	}
	if len(children) == 0 {
		w.logger.Warn("scraper: no options", "level", next.String(), "path", p.Labels(level))
		w.events.Emit(ctx, sink.Event{Kind: sink.KindEmptyLevel, Level: next.String(), Path: p.Labels(level)})
		return nil
	}

	for _, c := range children {
		if err := w.visit(ctx, st, next, p.With(next, c)); err != nil {
			return err
		}
	}
	return nil
}

// leaf captures one branch record.
func (w *walker) leaf(ctx context.Context, st *runState, p branch.Path) error {
	key := p.Key()
	if st.seen[key] {
		st.skipped++
		return nil
	}

	if err := w.reach(ctx, p, branch.Branch); err != nil {
		return w.fail(ctx, st, branch.Branch, p, err, page.Content{})
	}
	d, content, err := w.ext.Extract(ctx)
	if err != nil {
		return w.fail(ctx, st, branch.Branch, p, err, content)
	}
	if d == nil {
		return w.fail(ctx, st, branch.Branch, p, ErrNoRoutingCode, content)
	}
	rec, err := branch.NewRecord(p, *d, w.now())
	if err != nil {
		return w.fail(ctx, st, branch.Branch, p, err, content)
	}

	st.records = append(st.records, rec)
	st.seen[key] = true
	st.succeeded++
	w.events.Emit(ctx, sink.Event{
		Kind:  sink.KindRecord,
		Level: branch.Branch.String(),
		Path:  p.Labels(branch.Branch),
		IFSC:  rec.IFSC,
	})

	if w.ckpt.Due(st.succeeded) {
		if _, err := w.flush(ctx, st, checkpoint.BackupTag(st.succeeded)); err != nil {
			w.logger.Error("scraper: backup checkpoint failed", "error", err)
		}
	}
	return nil
}

// reach reloads the page and selects the chain p down to depth. Every
// node starts from a fresh page so a broken cascade cannot leak into
// its siblings.
func (w *walker) reach(ctx context.Context, p branch.Path, depth branch.Level) error {
	if err := w.nav.Load(ctx); err != nil {
		return err
	}
	if err := retry.Sleep(ctx, w.cfg.Timing.AfterNavigate); err != nil {
		return err
	}
	for _, l := range branch.Levels {
		if l > depth {
			break
		}
		if err := w.selectRetrying(ctx, l, p); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) selectRetrying(ctx context.Context, level branch.Level, p branch.Path) error {
	opt := p.At(level)
	return retry.Do(ctx, retry.Policy{
		Attempts: 1 + w.cfg.Timing.SelectRetries,
		Delay:    w.cfg.Timing.SelectRetryDelay,
		Stop:     func(err error) bool { return errors.Is(err, page.ErrClosed) },
		OnRetry: func(attempt int, err error) {
			w.logger.Warn("scraper: selection failed, retrying",
				"level", level.String(), "option", opt.Label, "attempt", attempt, "error", err)
			w.events.Emit(ctx, sink.Event{
				Kind:    sink.KindRetry,
				Level:   level.String(),
				Path:    p.Labels(level),
				Attempt: attempt,
				Error:   err.Error(),
			})
		},
	}, func(ctx context.Context) error {
		return w.sel.Select(ctx, level, opt.Code)
	})
}

// fail isolates a non-fatal failure at one node: it is counted, recorded
// and reported, and the walk continues. Fatal errors are returned as is.
func (w *walker) fail(ctx context.Context, st *runState, level branch.Level, p branch.Path, err error, c page.Content) error {
	if errors.Is(err, page.ErrClosed) || ctx.Err() != nil {
		return err
	}
	st.failed++
	st.failedBy[level]++

	path := p.Labels(level)
	w.logger.Warn("scraper: node abandoned", "level", level.String(), "path", path, "error", err)
	w.ckpt.Failure(ctx, level, path, err.Error())
	ev := sink.Event{
		Kind:  sink.KindFailure,
		Level: level.String(),
		Path:  path,
		Error: err.Error(),
	}
	if c.Text != "" || c.HTML != "" {
		ev.Sample = extract.Sample(c)
	}
	w.events.Emit(ctx, ev)
	return nil
}

func (w *walker) flush(ctx context.Context, st *runState, tag string) (Artifact, error) {
	a, err := w.ckpt.Flush(ctx, st.records, tag, st.succeeded, st.failed)
	if err != nil {
		return a, err
	}
	w.events.Emit(ctx, sink.Event{
		Kind:      sink.KindCheckpoint,
		Tag:       tag,
		Total:     a.Records,
		Succeeded: st.succeeded,
		Failed:    st.failed,
	})
	return a, nil
}
