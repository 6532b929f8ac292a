package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spiderbot/pkg/config"
	"spiderbot/pkg/crawler"
	"spiderbot/pkg/fetch"
	applog "spiderbot/pkg/log"
	"spiderbot/pkg/models"
	"spiderbot/pkg/store"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url]",
		Short: "Crawl the web starting from a seed URL",
		Long: `Crawl fetches the seed page, extracts its links, and follows every
admissible link until no reachable page remains unvisited or the crawl
is interrupted.

Each fetch outcome is appended to the CSV record log. Re-running with
the same storage path resumes: previously recorded URLs are never
refetched, and links discovered before an interruption are requeued
from the frontier snapshot.

Examples:
  # Crawl example.com, staying on the exact host
  spiderbot crawl https://example.com

  # Crawl with 8 workers and a 500ms politeness delay
  spiderbot crawl --workers 8 --delay 500ms https://example.com

  # Include subdomains (registrable-domain scope)
  spiderbot crawl --scope domain https://example.com

  # Follow links to any host
  spiderbot crawl --restrict=false https://example.com

  # Load settings from a YAML config file
  spiderbot crawl --config crawl.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("config", "c", "", "Path to a YAML config file")
	cmd.Flags().IntP("workers", "w", 4, "Number of concurrent workers (1-16)")
	cmd.Flags().DurationP("delay", "d", time.Second, "Politeness delay per worker before each request")
	cmd.Flags().Bool("restrict", true, "Restrict the crawl to the seed's domain")
	cmd.Flags().String("scope", config.ScopeHost, "Domain matching granularity: 'host' (exact) or 'domain' (include subdomains)")
	cmd.Flags().DurationP("timeout", "t", 5*time.Second, "Per-request timeout")
	cmd.Flags().Int("retries", 0, "Retry budget for transient failures (network errors, 5xx, 429)")
	cmd.Flags().String("user-agent", "SpiderBot/2.0", "User-Agent header")
	cmd.Flags().Duration("progress-every", 15*time.Second, "Interval for progress log lines (0 disables)")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	logLevel, _ := cmd.Flags().GetString("loglevel")
	logger := applog.New(logLevel, nil)

	// --- Configuration: file (if any), then flag overrides ---
	cfg := config.Default()
	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if len(args) == 1 {
		cfg.SeedURL = args[0]
	}
	if cmd.Flags().Changed("workers") {
		cfg.MaxWorkers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("delay") {
		cfg.Delay, _ = cmd.Flags().GetDuration("delay")
	}
	if cmd.Flags().Changed("restrict") {
		restricted, _ := cmd.Flags().GetBool("restrict")
		cfg.RestrictToDomain = &restricted
	}
	if cmd.Flags().Changed("scope") {
		cfg.DomainScope, _ = cmd.Flags().GetString("scope")
	}
	if cmd.Flags().Changed("timeout") {
		cfg.RequestTimeout, _ = cmd.Flags().GetDuration("timeout")
	}
	if cmd.Flags().Changed("retries") {
		cfg.MaxRetries, _ = cmd.Flags().GetInt("retries")
	}
	if cmd.Flags().Changed("user-agent") {
		cfg.UserAgent, _ = cmd.Flags().GetString("user-agent")
	}
	if cmd.Flags().Changed("storage") {
		cfg.StoragePath, _ = cmd.Flags().GetString("storage")
	}

	// --- Wire the engine ---
	recordStore, err := store.NewCSVStore(cfg.StoragePath, logger)
	if err != nil {
		return err
	}
	defer recordStore.Close()

	client := fetch.NewClient(cfg.HTTPClientSettings, logger)
	fetcher := fetch.NewFetcher(client, cfg, logger)

	engine, err := crawler.New(cfg, recordStore, fetcher, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		return err
	}

	// --- Event stream -> log lines for display ---
	go func() {
		for event := range engine.Events() {
			switch event.Type {
			case models.EventFetched:
				logger.Infof("Crawled: %s (Status: %s, %d new links)", event.URL, event.Status, event.Links)
			case models.EventFailed:
				logger.Warnf("Failed: %s (%s)", event.URL, event.Category)
			}
		}
	}()

	// --- Periodic progress reporting ---
	if interval, _ := cmd.Flags().GetDuration("progress-every"); interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		go func() {
			for range ticker.C {
				p := engine.Progress()
				logger.Infof("Progress: visited=%d queued=%d pending=%d workers=%d",
					p.Visited, p.Queued, p.Pending, p.ActiveWorkers)
			}
		}()
	}

	// --- Graceful shutdown on SIGINT/SIGTERM, force exit on the second ---
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	waitDone := make(chan error, 1)
	go func() { waitDone <- engine.Wait(ctx) }()

	select {
	case err := <-waitDone:
		if err != nil {
			return err
		}
	case sig := <-sigChan:
		logger.Warnf("Received signal: %v. Stopping crawl...", sig)
		stopDone := make(chan error, 1)
		go func() { stopDone <- engine.Stop() }()
		select {
		case err := <-stopDone:
			if err != nil {
				return err
			}
		case sig = <-sigChan:
			logger.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		}
	}

	p := engine.Progress()
	logger.Infof("Done: visited=%d queued=%d pending=%d", p.Visited, p.Queued, p.Pending)
	return nil
}
