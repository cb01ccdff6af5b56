// Command ifsc scrapes the bank-branch directory and serves lookups over
// the captured records.
//
// Usage:
//
//	ifsc scrape --config ifsc.yaml             # full run, artifacts under checkpoint.dir
//	ifsc scrape --engine fixture --fixture site.yaml --limit 2
//	ifsc lookup --records out/final.json HDFC0000060
//	ifsc serve --records out/final.json --addr :8080
//	ifsc mcp --records out/final.json          # MCP tool over stdio
//	ifsc runs --ledger out/ledger.db
//	ifsc failures --ledger out/ledger.db <run-id>
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	logLevel string
	logger   = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:           "ifsc",
	Short:         "Scrape the IFSC bank-branch directory and look codes up.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		var level slog.Level
		switch logLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("ifsc: fatal", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
