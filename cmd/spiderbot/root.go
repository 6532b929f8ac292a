package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for spiderbot.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spiderbot",
		Short: "Bounded, polite, multi-worker web crawler",
		Long: `spiderbot crawls the web from a seed address, discovering and fetching
reachable pages within an optional domain restriction. Every visited
resource is recorded exactly once with its retrieval outcome in an
append-only CSV log, and an interrupted crawl resumes from that log
without refetching anything.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().String("loglevel", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringP("storage", "s", "crawled_urls.csv", "Path to the CSV record log")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewClearCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
