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
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/deepsearch"
	"github.com/poiesic/deepsearch/ai"
	"github.com/poiesic/deepsearch/ingest"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "deepsearch",
		Usage: "Adaptive retrieval and answer routing over a local corpus",
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
				Name:      "ask",
				Usage:     "Answer a question through the routing pipeline",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: append(systemFlags(),
					&cli.StringFlag{
						Name:  "query-type",
						Usage: "Query category hint (factual, procedural, ...)",
					},
				),
			},
			{
				Name:      "ingest",
				Usage:     "Split, embed and index text files into the corpus",
				ArgsUsage: "<file> [<file> ...]",
				Action:    ingestCommand,
				Flags: append(systemFlags(),
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Target chunk size in characters",
						Value: ingest.DefaultChunkSize,
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Characters of overlap between adjacent chunks",
						Value: ingest.DefaultChunkOverlap,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed in each batch",
						Value: ingest.DefaultBatchSize,
					},
				),
			},
			{
				Name:   "stats",
				Usage:  "Show corpus, memory and backend statistics",
				Action: statsCommand,
				Flags:  systemFlags(),
			},
			{
				Name:      "compete",
				Usage:     "Race all answer backends on one prompt",
				ArgsUsage: "<question>",
				Action:    competeCommand,
				Flags:     systemFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func systemFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
			Value:   "./deepsearch_db",
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "generator-model",
			Usage: "Generation model name",
			Value: "qwen2.5:3b",
		},
		&cli.BoolFlag{
			Name:  "web-search",
			Usage: "Register the web search fallback backend",
		},
	}
}

func openSystem(c *cli.Context) (*deepsearch.System, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGeneratorModel(c.String("generator-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts := []deepsearch.SystemOption{
		deepsearch.WithAIConfig(aiConfig),
	}
	if c.Bool("web-search") {
		opts = append(opts, deepsearch.WithWebSearch())
	}

	system, err := deepsearch.Open(c.String("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open system: %w", err)
	}
	return system, nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	result := system.Route(context.Background(), question, c.String("query-type"))

	fmt.Println(result.Answer)
	fmt.Println()
	fmt.Printf("source: %s", result.Source)
	if result.Provider != "" {
		fmt.Printf("  backend: %s", result.Provider)
	}
	if result.FromMemory {
		fmt.Printf("  (from memory)")
	}
	fmt.Printf("  confidence: %.2f\n", result.Confidence)

	for i, ref := range result.References {
		if ref.URL != "" {
			fmt.Printf("%d: %s (%s)\n", i+1, ref.Title, ref.URL)
		} else {
			fmt.Printf("%d: %s [%.3f]\n", i+1, ref.Title, ref.Similarity)
		}
	}
	return nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	pipeline, err := system.NewIngestionPipeline(
		ingest.WithChunking(c.Int("chunk-size"), c.Int("chunk-overlap")),
		ingest.WithBatchSize(c.Int("batch-size")),
	)
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}
	defer pipeline.Release()

	ctx := context.Background()
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		report, err := pipeline.Ingest(ctx, path, string(data))
		if err != nil {
			return fmt.Errorf("ingestion of %s failed: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "%s: %d chunks indexed", path, report.ChunksCreated)
		if report.BatchesFailed > 0 {
			fmt.Fprintf(os.Stderr, " (%d batches failed)", report.BatchesFailed)
		}
		fmt.Fprintln(os.Stderr)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	stats, err := system.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to collect statistics: %w", err)
	}

	fmt.Printf("corpus chunks: %d\n", stats.CorpusChunks)
	fmt.Printf("memory entries: %d (max %d, threshold %.2f)\n",
		stats.Memory.TotalEntries, stats.Memory.MaxEntries, stats.Memory.SimilarityThreshold)
	for name, ps := range stats.Providers {
		fmt.Printf("backend %s: %d requests, %d errors, avg latency %s\n",
			name, ps.TotalRequests, ps.Errors, ps.AvgLatency)
	}
	return nil
}

func competeCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	completion, err := system.Providers().Compete(context.Background(), question, 0.7)
	if err != nil {
		return fmt.Errorf("all backends failed: %w", err)
	}

	fmt.Println(completion.Answer)
	fmt.Println()
	fmt.Printf("winner: %s in %s\n", completion.Provider, completion.Latency)
	for name, ps := range completion.Stats {
		fmt.Printf("backend %s: %d requests, %d errors, avg latency %s\n",
			name, ps.TotalRequests, ps.Errors, ps.AvgLatency)
	}
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
