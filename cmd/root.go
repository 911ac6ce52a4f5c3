// Package cmd defines and implements the CLI commands for the siteharvest
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "siteharvest",
		Short: "A same-domain web scraper that renders pages and extracts their content.",
		Long: `siteharvest crawls a single website, renders each page (in a headless
browser or with a plain HTTP client), strips navigation boilerplate, and
persists the extracted content as JSON artifacts or one aggregate text file.
Linked documents such as PDFs are downloaded alongside the pages.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.AddCommand(newScrapeCmd())

	return cmd
}

// Execute is the main entry point. The command context is cancelled on
// SIGINT/SIGTERM so an interrupted crawl still finalizes its output.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
