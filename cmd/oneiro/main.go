// Copyright 2025 Somno Labs
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
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/somnolabs/oneiro"
	"github.com/somnolabs/oneiro/ai"
	"github.com/somnolabs/oneiro/core"
	"github.com/somnolabs/oneiro/retrieval"
	"github.com/somnolabs/oneiro/worker"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "oneiro",
		Usage: "Semantic processing for dream transcripts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "submit",
				Usage:  "Submit a dream transcript for processing",
				Action: submitCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "file",
						Usage: "Read transcript from file instead of stdin",
					},
					&cli.IntFlag{
						Name:  "priority",
						Usage: "Job priority (higher claims first)",
						Value: 0,
					},
				},
			},
			{
				Name:   "worker",
				Usage:  "Run the processing scheduler until interrupted",
				Action: workerCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Maximum jobs processed at once (0 = auto)",
						Value: 0,
					},
					&cli.IntFlag{
						Name:  "max-attempts",
						Usage: "Attempt budget before a job dead-letters",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "polling-interval",
						Usage: "How often to look for due jobs",
						Value: 2 * time.Second,
					},
					&cli.DurationFlag{
						Name:  "stale-timeout",
						Usage: "Processing age after which a job is presumed orphaned",
						Value: 10 * time.Minute,
					},
				},
			},
			{
				Name:      "retrieve",
				Usage:     "Retrieve interpretation fragments for a query",
				Action:    retrieveCommand,
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "theme",
						Usage: "Matched theme code (repeatable)",
					},
					&cli.StringFlag{
						Name:  "scope",
						Usage: "Fragment scope to search within",
					},
					&cli.IntFlag{
						Name:  "max-results",
						Usage: "Maximum fragments returned",
						Value: 5,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the processing status of a submitted dream",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.Uint64Flag{
						Name:     "dream",
						Usage:    "Dream ID",
						Required: true,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func submitCommand(c *cli.Context) error {
	ctx := context.Background()

	var text []byte
	var err error
	if file := c.String("file"); file != "" {
		text, err = os.ReadFile(file)
	} else {
		text, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("failed to read transcript: %w", err)
	}

	// The embedder is never exercised on the submit path, so connect with
	// defaults rather than demanding embedding flags here.
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	dream, err := db.Submit(ctx, string(text), c.Int("priority"))
	if err != nil {
		return fmt.Errorf("failed to submit dream: %w", err)
	}

	fmt.Printf("submitted dream %d (%d bytes)\n", dream.Id, len(dream.Text))
	return nil
}

func workerCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	config := worker.DefaultConfig()
	if c.Int("concurrency") > 0 {
		config.MaxConcurrentJobs = c.Int("concurrency")
	}
	config.MaxJobAttempts = c.Int("max-attempts")
	config.PollingInterval = c.Duration("polling-interval")
	config.StaleJobTimeout = c.Duration("stale-timeout")

	scheduler, err := db.NewScheduler(config)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("scheduler failed: %w", err)
	}
	return nil
}

func retrieveCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	config := retrieval.DefaultConfig()
	config.MaxResults = c.Int("max-results")

	retriever, err := db.NewRetriever(config)
	if err != nil {
		return fmt.Errorf("failed to create retriever: %w", err)
	}

	result, err := retriever.Retrieve(ctx, query, c.StringSlice("theme"), c.String("scope"))
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	fmt.Printf("method: %s\n", result.Method)
	for i, fragment := range result.Fragments {
		fmt.Printf("%d. [%s] %s\n", i+1, fragment.Source, fragment.Text)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	dream, err := db.DreamStore().GetDream(ctx, core.ID(c.Uint64("dream")))
	if err != nil {
		return fmt.Errorf("failed to load dream: %w", err)
	}

	fmt.Printf("dream %d: %s\n", dream.Id, dream.Status)
	if dream.LastError != "" {
		fmt.Printf("last error: %s\n", dream.LastError)
	}

	job, err := db.JobStore().GetJob(ctx, dream.Id)
	if err != nil {
		return nil
	}
	fmt.Printf("job: %s, attempts %d/%d\n", job.Status, job.Attempts, job.MaxAttempts)
	if job.Status == core.JobStatusPending {
		fmt.Printf("scheduled at: %s\n", job.ScheduledAt.Format(time.RFC3339))
	}

	matches, err := db.DreamStore().GetThemeMatches(ctx, dream.Id)
	if err == nil && len(matches) > 0 {
		fmt.Println("themes:")
		for _, match := range matches {
			fmt.Printf("  %s (%.2f)\n", match.Code, match.Score)
		}
	}
	return nil
}

// openDatabase connects to the store using the command's flags.
func openDatabase(c *cli.Context) (*oneiro.Database, error) {
	dbPath := c.String("db")
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	opts := []oneiro.DatabaseOption{}
	if c.IsSet("embedding-host") || c.IsSet("embedding-model") {
		aiConfig := ai.NewConfig(
			ai.WithEmbeddingHost(c.String("embedding-host")),
			ai.WithEmbeddingModel(c.String("embedding-model")),
		)
		if err := aiConfig.Validate(); err != nil {
			return nil, fmt.Errorf("invalid AI configuration: %w", err)
		}
		opts = append(opts, oneiro.WithAIConfig(aiConfig))
	}

	db, err := oneiro.NewDatabase(dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
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

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
