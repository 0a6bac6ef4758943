// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/schedex"
	"github.com/poiesic/schedex/config"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/httpapi"
	"github.com/poiesic/schedex/reembed"
	"github.com/poiesic/schedex/search"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "schedex",
		Usage: "Fee schedule catalog with hybrid search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Path to the BadgerDB data directory (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "no-ai",
				Usage: "Disable the embedding provider; searches run in text mode",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and run queued jobs",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides config)",
					},
					&cli.DurationFlag{
						Name:  "shutdown-timeout",
						Usage: "How long to wait for in-flight requests on shutdown",
						Value: 15 * time.Second,
					},
				},
			},
			{
				Name:   "ingest",
				Usage:  "Load a schedule file into the catalog",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Schedule file (XML or JSON)",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Rewrite items even when unchanged",
					},
					&cli.BoolFlag{
						Name:  "embed",
						Usage: "Embed new and changed items after parsing",
					},
				},
			},
			{
				Name:   "embed",
				Usage:  "Generate embeddings for catalog items",
				Action: embedCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "items",
						Usage: "Only embed these item numbers",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-embed items that already have a vector",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of items to embed per request (0 uses config)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the catalog",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Search mode (text, semantic, hybrid)",
						Value: string(search.ModeHybrid),
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum results",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "smart",
						Usage: "Separate the exact match from related items",
					},
					&cli.BoolFlag{
						Name:  "include-inactive",
						Usage: "Include items no longer billable",
					},
				},
			},
			{
				Name:  "jobs",
				Usage: "Inspect and manage ingestion jobs (requires exclusive access to the data dir)",
				Subcommands: []*cli.Command{
					{
						Name:   "stats",
						Usage:  "Count jobs per status",
						Action: jobStatsCommand,
					},
					{
						Name:      "status",
						Usage:     "Show a job",
						ArgsUsage: "<job-id>",
						Action:    jobStatusCommand,
					},
					{
						Name:      "cancel",
						Usage:     "Cancel a queued or running job",
						ArgsUsage: "<job-id>",
						Action:    jobCancelCommand,
					},
					{
						Name:   "logs",
						Usage:  "List ingestion logs, most recent first",
						Action: jobLogsCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Value: 20},
							&cli.IntFlag{Name: "offset"},
						},
					},
					{
						Name:   "clean",
						Usage:  "Remove finished jobs past the retention period",
						Action: jobCleanCommand,
					},
				},
			},
		},
	}
}

// loadConfig reads the config file and environment, then applies global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if c.Bool("no-ai") {
		cfg.AI.Enabled = false
	}
	if c.IsSet("addr") {
		cfg.HTTPAddr = c.String("addr")
	}
	return cfg, cfg.Validate()
}

func openCatalog(c *cli.Context) (*schedex.Catalog, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := schedex.Open(cfg, schedex.WithLogger(slog.Default()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return catalog, cfg, nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, cfg, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	if err := catalog.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}

	server := httpapi.New(catalog,
		httpapi.WithLogger(slog.Default()),
		httpapi.WithMetricsHandler(catalog.MetricsHandler()),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Duration("shutdown-timeout"))
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func ingestCommand(c *cli.Context) error {
	catalog, _, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	source := c.String("source")
	fmt.Fprintf(os.Stderr, "Source: %s\n", source)

	report, err := catalog.Ingest(c.Context, source, c.Bool("force"), c.Bool("embed"))
	if report != nil {
		printCounts(c, report.Counts)
		for _, e := range report.Errors {
			fmt.Fprintf(c.App.Writer, "  error: %s\n", e)
		}
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func printCounts(c *cli.Context, counts core.IngestionCounts) {
	fmt.Fprintf(c.App.Writer, "parsed=%d created=%d updated=%d skipped=%d failed=%d embedded=%d deactivated=%d\n",
		counts.Parsed, counts.Created, counts.Updated, counts.Skipped, counts.Failed, counts.Embedded, counts.Deactivated)
}

func parseItemNumbers(raw []string) ([]core.ItemNumber, error) {
	var numbers []core.ItemNumber
	for _, entry := range raw {
		for _, s := range strings.Split(entry, ",") {
			if strings.TrimSpace(s) == "" {
				continue
			}
			n, err := core.ParseItemNumber(s)
			if err != nil {
				return nil, err
			}
			numbers = append(numbers, n)
		}
	}
	return numbers, nil
}

func embedCommand(c *cli.Context) error {
	items, err := parseItemNumbers(c.StringSlice("items"))
	if err != nil {
		return err
	}
	batchSize := c.Int("batch-size")
	if batchSize < 0 || batchSize > core.MaxEmbedBatchSize {
		return fmt.Errorf("batch-size must be between 0 and %d", core.MaxEmbedBatchSize)
	}

	catalog, cfg, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.DataDir)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.AI.Host)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.AI.Model)
	fmt.Fprintln(os.Stderr)

	result, err := catalog.Embed(c.Context, reembed.Target{
		Force:     c.Bool("force"),
		Items:     items,
		BatchSize: batchSize,
	}, os.Stderr)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "selected=%d embedded=%d stale=%d failed=%d\n",
		result.Selected, result.Embedded, result.Stale, result.Failed)
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}

	catalog, _, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	req := search.Request{
		Query: query,
		Mode:  search.Mode(c.String("mode")),
		Limit: c.Int("limit"),
		Filters: search.Filters{
			IncludeInactive: c.Bool("include-inactive"),
		},
	}

	w := c.App.Writer
	if c.Bool("smart") {
		resp, err := catalog.SmartSearch(c.Context, search.SmartRequest{Request: req})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "intent=%s mode=%s total=%d (%s)\n", resp.Intent, resp.EffectiveMode, resp.Total, resp.ProcessingTime)
		printResults(c, "exact", resp.ExactMatches)
		printResults(c, "related", resp.RelatedMatches)
		return nil
	}

	resp, err := catalog.Search(c.Context, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "mode=%s total=%d (%s)\n", resp.EffectiveMode, resp.Total, resp.ProcessingTime)
	printResults(c, "", resp.Results)
	return nil
}

func printResults(c *cli.Context, section string, results []*search.Result) {
	for i, r := range results {
		if section != "" {
			fmt.Fprintf(c.App.Writer, "[%s] ", section)
		}
		fmt.Fprintf(c.App.Writer, "%d: %d $%.2f [%0.3f %s] %s\n",
			i, r.Item.Number, r.Item.Fees.Schedule, r.Score, r.MatchType, r.Item.Description)
	}
}

func jobStatsCommand(c *cli.Context) error {
	catalog, _, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	stats, err := catalog.QueueStats(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "queued=%d running=%d completed=%d failed=%d total=%d\n",
		stats.Queued, stats.Running, stats.Completed, stats.Failed, stats.Total)
	return nil
}

func jobID(c *cli.Context) (string, error) {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return "", errors.New("a job id is required")
	}
	return id, nil
}

func jobStatusCommand(c *cli.Context) error {
	id, err := jobID(c)
	if err != nil {
		return err
	}
	catalog, _, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	job, err := catalog.JobStatus(c.Context, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s %s %s enqueued=%s\n", job.ID, job.Kind, job.Status, job.EnqueuedAt.Format(time.RFC3339))
	if job.Status.Terminal() {
		printCounts(c, job.Summary)
	}
	if job.Error != "" {
		fmt.Fprintf(c.App.Writer, "error: %s\n", job.Error)
	}
	return nil
}

func jobCancelCommand(c *cli.Context) error {
	id, err := jobID(c)
	if err != nil {
		return err
	}
	catalog, _, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	if err := catalog.CancelJob(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "cancelled %s\n", id)
	return nil
}

func jobLogsCommand(c *cli.Context) error {
	catalog, _, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	page, err := catalog.IngestionLogs(c.Context, c.Int("limit"), c.Int("offset"))
	if err != nil {
		return err
	}
	for _, l := range page.Logs {
		fmt.Fprintf(c.App.Writer, "%s %s %s %s ", l.StartedAt.Format(time.RFC3339), l.ID, l.Kind, l.Status)
		printCounts(c, l.Counts)
	}
	fmt.Fprintf(c.App.Writer, "%d of %d\n", len(page.Logs), page.Total)
	return nil
}

func jobCleanCommand(c *cli.Context) error {
	catalog, _, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer catalog.Close()

	n, err := catalog.CleanJobs(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %d jobs\n", n)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
