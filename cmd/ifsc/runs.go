package main

import (
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/ifscdir/scraper"
)

var (
	ledgerPath string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent scrape runs from the ledger.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		l, err := scraper.OpenLedger(ledgerPath)
		if err != nil {
			return err
		}
		defer l.Close()

		runs, err := l.Runs(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Run", "Status", "Started", "Took", "Captured", "Failed", "Checkpoints", "Last"})
		for _, r := range runs {
			took := "-"
			if !r.FinishedAt.IsZero() {
				took = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
			}
			t.AppendRow(table.Row{r.ID, r.Status, r.StartedAt.Format(time.DateTime), took,
				r.Succeeded, r.Failed, r.Checkpoints, r.LastTag})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

var failuresCmd = &cobra.Command{
	Use:   "failures <run-id>",
	Short: "List the nodes a run abandoned.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := scraper.OpenLedger(ledgerPath)
		if err != nil {
			return err
		}
		defer l.Close()

		fails, err := l.Failures(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"At", "Level", "Path", "Reason"})
		for _, f := range fails {
			t.AppendRow(table.Row{f.At.Format(time.TimeOnly), f.Level, strings.Join(f.Path, " / "), f.Reason})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{runsCmd, failuresCmd} {
		c.Flags().StringVar(&ledgerPath, "ledger", "out/ledger.db", "SQLite progress ledger")
		rootCmd.AddCommand(c)
	}
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to show")
}
