package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/ifscdir/lookup"
)

var recordsPath string

var lookupCmd = &cobra.Command{
	Use:   "lookup <ifsc>",
	Short: "Print every captured branch with the given IFSC code.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := lookup.Load(recordsPath)
		if err != nil {
			return err
		}
		matches, err := idx.Find(args[0])
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("no branch with IFSC %s in %d records", args[0], idx.Len())
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"IFSC", "MICR", "Bank", "State", "District", "Branch", "Address", "Contact"})
		for _, r := range matches {
			t.AppendRow(table.Row{r.IFSC, r.MICR, r.BankName, r.State, r.District, r.BranchName, r.Address, r.Contact})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

var serveFlags struct {
	addr  string
	rate  float64
	burst int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve IFSC lookups over HTTP.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		idx, err := lookup.Load(recordsPath)
		if err != nil {
			return err
		}
		srv := &http.Server{
			Addr: serveFlags.addr,
			Handler: lookup.Handler(idx, lookup.HandlerConfig{
				Logger:        logger,
				RatePerSecond: serveFlags.rate,
				Burst:         serveFlags.burst,
			}),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
		}

		ctx := cmd.Context()
		errc := make(chan error, 1)
		go func() {
			logger.Info("ifsc: lookup listening", "addr", serveFlags.addr, "records", idx.Len())
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		logger.Info("ifsc: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the " + lookup.ToolName + " tool over MCP stdio.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		idx, err := lookup.Load(recordsPath)
		if err != nil {
			return err
		}
		logger.Info("ifsc: mcp stdio", "records", idx.Len())
		return lookup.NewMCPServer(idx, version).Run(cmd.Context(), &mcp.StdioTransport{})
	},
}

func init() {
	for _, c := range []*cobra.Command{lookupCmd, serveCmd, mcpCmd} {
		c.Flags().StringVar(&recordsPath, "records", "out/final.json", "JSON record artifact to index")
		rootCmd.AddCommand(c)
	}
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", ":8080", "listen address")
	serveCmd.Flags().Float64Var(&serveFlags.rate, "rate", 10, "requests per second per client IP")
	serveCmd.Flags().IntVar(&serveFlags.burst, "burst", 20, "burst per client IP")
}
