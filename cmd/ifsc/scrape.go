package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/ifscdir/scraper"
)

var scrapeFlags struct {
	config      string
	engine      string
	fixture     string
	out         string
	limit       int
	resume      string
	ledger      string
	metricsAddr string
	events      bool
	noWait      bool
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Walk every bank, state, district and branch and write JSON/CSV checkpoints.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := scrapeConfig(cmd)
		if err != nil {
			return err
		}
		return runScrape(cmd.Context(), cfg)
	},
}

func init() {
	f := scrapeCmd.Flags()
	f.StringVar(&scrapeFlags.config, "config", "", "path to ifsc.yaml config file")
	f.StringVar(&scrapeFlags.engine, "engine", "", "page driver: rod, playwright, fixture")
	f.StringVar(&scrapeFlags.fixture, "fixture", "", "YAML site file for the fixture engine")
	f.StringVar(&scrapeFlags.out, "out", "", "checkpoint directory")
	f.IntVar(&scrapeFlags.limit, "limit", 0, "process only the first N banks")
	f.StringVar(&scrapeFlags.resume, "resume", "", "JSON checkpoint to resume from")
	f.StringVar(&scrapeFlags.ledger, "ledger", "", "SQLite progress ledger path")
	f.StringVar(&scrapeFlags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.BoolVar(&scrapeFlags.events, "events", false, "write progress events to stdout as JSON lines")
	f.BoolVar(&scrapeFlags.noWait, "no-wait", false, "disable every delay (fixture runs)")
	rootCmd.AddCommand(scrapeCmd)
}

// scrapeConfig loads the config file, if any, and applies flag overrides.
func scrapeConfig(cmd *cobra.Command) (*scraper.Config, error) {
	cfg := scraper.DefaultConfig()
	if scrapeFlags.config != "" {
		var err error
		if cfg, err = scraper.LoadConfigFile(scrapeFlags.config); err != nil {
			return nil, err
		}
	}
	f := cmd.Flags()
	if f.Changed("engine") {
		cfg.Browser.Engine = scrapeFlags.engine
	}
	if f.Changed("fixture") {
		cfg.Browser.Fixture = scrapeFlags.fixture
		if !f.Changed("engine") {
			cfg.Browser.Engine = scraper.EngineFixture
		}
	}
	if f.Changed("out") {
		cfg.Checkpoint.Dir = scrapeFlags.out
	}
	if f.Changed("limit") {
		cfg.Limit.Banks = scrapeFlags.limit
	}
	if f.Changed("resume") {
		cfg.Resume = scrapeFlags.resume
	}
	if f.Changed("ledger") {
		cfg.Checkpoint.Ledger = scrapeFlags.ledger
	}
	if scrapeFlags.noWait {
		cfg.Timing = scraper.NoWait()
	}
	return cfg, nil
}

func runScrape(ctx context.Context, cfg *scraper.Config) error {
	sinks := []scraper.Sink{scraper.NewLogSink(logger)}
	if scrapeFlags.events {
		sinks = append(sinks, scraper.NewStdoutSink(os.Stdout))
	}
	if scrapeFlags.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		sinks = append(sinks, scraper.NewMetricsSink("ifsc", reg))
		stop := serveMetrics(scrapeFlags.metricsAddr, reg)
		defer stop()
	}

	opts := []scraper.Option{scraper.WithLogger(logger), scraper.WithSinks(sinks...)}
	if cfg.Checkpoint.Ledger != "" {
		ledger, err := scraper.OpenLedger(cfg.Checkpoint.Ledger)
		if err != nil {
			return err
		}
		defer ledger.Close()
		opts = append(opts, scraper.WithLedger(ledger))
	}

	drv, err := scraper.OpenDriver(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer drv.Close()

	s := scraper.New(cfg, drv, opts...)
	defer s.Close()

	sum, err := s.Run(ctx)
	printSummary(sum)
	return err
}

func printSummary(sum scraper.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stderr)
	t.SetTitle("run " + sum.RunID)
	t.AppendRows([]table.Row{
		{"banks", sum.Banks},
		{"captured", sum.Succeeded},
		{"failed", sum.Failed},
		{"skipped (resume)", sum.Skipped},
		{"records", sum.Records},
		{"success rate", fmt.Sprintf("%.1f%%", 100*sum.SuccessRate())},
		{"elapsed", sum.Elapsed.Round(time.Second)},
	})
	levels := make([]string, 0, len(sum.FailedByLevel))
	for l := range sum.FailedByLevel {
		levels = append(levels, l)
	}
	sort.Strings(levels)
	for _, l := range levels {
		t.AppendRow(table.Row{"failed at " + l, sum.FailedByLevel[l]})
	}
	if sum.Final.JSONPath != "" {
		t.AppendSeparator()
		t.AppendRow(table.Row{"json", sum.Final.JSONPath})
		t.AppendRow(table.Row{"csv", sum.Final.CSVPath})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// serveMetrics exposes reg on addr until the returned func is called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("ifsc: metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ifsc: metrics server", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
