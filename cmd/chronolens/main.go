// Copyright 2026 Chronolens Systems
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
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/chronolens/chronolens"
	"github.com/chronolens/chronolens/ai"
	"github.com/chronolens/chronolens/blob/natsobj"
	"github.com/chronolens/chronolens/queue"
	"github.com/chronolens/chronolens/queue/natsq"
	"github.com/chronolens/chronolens/reembed"
	"github.com/chronolens/chronolens/worker"
)

func main() {
	app := &cli.App{
		Name:  "chronolens",
		Usage: "Asynchronous image enrichment and comparison pipeline",
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
				Name:   "worker",
				Usage:  "Run the enrichment and comparison worker",
				Action: workerCommand,
				Flags: append(commonFlags(),
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Worker pool size (0 = half the CPUs)",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retries per task after the initial attempt",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 2 * time.Second,
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Address to serve Prometheus metrics on (empty = disabled)",
					},
					&cli.StringFlag{
						Name:  "failure-subject",
						Usage: "NATS subject for permanent-failure reports",
						Value: natsq.DefaultFailureSubject,
					},
				),
			},
			{
				Name:      "upload",
				Usage:     "Upload an image into a project",
				ArgsUsage: "<file>",
				Action:    uploadCommand,
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:     "project",
						Aliases:  []string{"p"},
						Usage:    "Project identifier",
						Required: true,
					},
				),
			},
			{
				Name:   "compare",
				Usage:  "Compare two images of a project by sequence number",
				Action: compareCommand,
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:     "project",
						Aliases:  []string{"p"},
						Usage:    "Project identifier",
						Required: true,
					},
					&cli.Uint64Flag{
						Name:     "seq1",
						Usage:    "First sequence number",
						Required: true,
					},
					&cli.Uint64Flag{
						Name:     "seq2",
						Usage:    "Second sequence number",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "question",
						Usage: "Focus the comparison on a specific aspect",
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Search a project's images by text",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:     "project",
						Aliases:  []string{"p"},
						Usage:    "Project identifier",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
				),
			},
			{
				Name:      "ask",
				Usage:     "Ask a question about one image by sequence number",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:     "project",
						Aliases:  []string{"p"},
						Usage:    "Project identifier",
						Required: true,
					},
					&cli.Uint64Flag{
						Name:     "seq",
						Usage:    "Sequence number",
						Required: true,
					},
				),
			},
			{
				Name:   "reembed",
				Usage:  "Regenerate stored embeddings for a project",
				Action: reembedCommand,
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:     "project",
						Aliases:  []string{"p"},
						Usage:    "Project identifier",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records processed per batch",
						Value: 100,
					},
				),
			},
			{
				Name:   "list",
				Usage:  "List a project's images in sequence order",
				Action: listCommand,
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:     "project",
						Aliases:  []string{"p"},
						Usage:    "Project identifier",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records (0 = all)",
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB index directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "nats-url",
			Usage: "NATS server URL for the queue and blob store (empty = in-process)",
		},
		&cli.StringFlag{
			Name:  "blob-bucket",
			Usage: "JetStream ObjectStore bucket for image blobs",
			Value: "chronolens-images",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "clip-vit-base-patch32",
		},
		&cli.StringFlag{
			Name:  "vision-host",
			Usage: "Vision-language model host URL (defaults to embedding-host)",
		},
		&cli.StringFlag{
			Name:  "vision-model",
			Usage: "Vision-language model name",
			Value: "llava:13b",
		},
	}
}

// openSystem assembles a System from CLI flags, wiring NATS-backed
// queue and blob store when a server URL is given. The returned
// connection is nil when running in-process.
func openSystem(c *cli.Context) (*chronolens.System, *nats.Conn, func(), error) {
	visionHost := c.String("vision-host")
	if visionHost == "" {
		visionHost = c.String("embedding-host")
	}
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithVisionHost(visionHost),
		ai.WithVisionModel(c.String("vision-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts := []chronolens.SystemOption{chronolens.WithAIConfig(aiConfig)}
	cleanup := func() {}

	var conn *nats.Conn
	if url := c.String("nats-url"); url != "" {
		nc, err := nats.Connect(url)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return nil, nil, nil, fmt.Errorf("failed to open JetStream: %w", err)
		}

		blobs, err := natsobj.NewStore(js, c.String("blob-bucket"), slog.Default())
		if err != nil {
			nc.Close()
			return nil, nil, nil, err
		}

		q, err := natsq.NewQueue(js, natsq.DefaultConfig(), slog.Default())
		if err != nil {
			nc.Close()
			return nil, nil, nil, err
		}

		opts = append(opts, chronolens.WithBlobStore(blobs), chronolens.WithQueue(q))
		cleanup = nc.Close
		conn = nc
	}

	system, err := chronolens.NewSystem(c.String("db"), opts...)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return system, conn, cleanup, nil
}

func workerCommand(c *cli.Context) error {
	system, conn, cleanup, err := openSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()
	defer system.Close()

	opts := []worker.Option{
		worker.WithRetryPolicy(worker.RetryPolicy{
			MaxRetries: c.Int("max-retries"),
			BaseDelay:  c.Duration("retry-delay"),
		}),
	}
	if size := c.Int("pool-size"); size > 0 {
		opts = append(opts, worker.WithPoolSize(size))
	}
	if conn != nil {
		sink := natsq.NewFailureSink(conn, c.String("failure-subject"), slog.Default())
		opts = append(opts, worker.WithFailureSink(sink))
	}

	if addr := c.String("metrics-addr"); addr != "" {
		registry := prometheus.NewRegistry()
		metrics, err := worker.NewMetrics(registry)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		opts = append(opts, worker.WithMetrics(metrics))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				slog.Error("metrics server stopped", "err", err)
			}
		}()
	}

	dispatcher, err := system.NewDispatcher(opts...)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("worker started", "db", c.String("db"), "nats", c.String("nats-url"))
	if err := dispatcher.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func uploadCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}

	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to read image file: %w", err)
	}

	system, _, cleanup, err := openSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()
	defer system.Close()

	receipt, err := system.NewUploadService().Upload(c.Context, c.String("project"), data)
	if err != nil {
		return err
	}
	return printJSON(receipt)
}

func compareCommand(c *cli.Context) error {
	system, _, cleanup, err := openSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()
	defer system.Close()

	result, err := system.NewComparePipeline().Process(c.Context, queue.CompareInvocation{
		ProjectID: c.String("project"),
		Sequence1: c.Uint64("seq1"),
		Sequence2: c.Uint64("seq2"),
		Question:  c.String("question"),
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func searchCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one query argument")
	}

	system, _, cleanup, err := openSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()
	defer system.Close()

	searcher, err := system.NewSearcher()
	if err != nil {
		return err
	}

	results, err := searcher.Search(c.Context, c.String("project"), c.Args().First(), c.Int("limit"))
	if err != nil {
		return err
	}

	for _, result := range results {
		fmt.Printf("%6.4f  seq=%-4d  %s  %s\n",
			result.Score,
			result.Record.SequenceNumber,
			result.Record.Filename,
			result.Record.TextDescription,
		)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one question argument")
	}

	system, _, cleanup, err := openSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()
	defer system.Close()

	searcher, err := system.NewSearcher()
	if err != nil {
		return err
	}

	answer, err := searcher.AnswerQuestion(c.Context, c.String("project"), c.Uint64("seq"), c.Args().First())
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

func reembedCommand(c *cli.Context) error {
	system, _, cleanup, err := openSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()
	defer system.Close()

	config := reembed.DefaultConfig()
	config.BatchSize = c.Int("batch-size")

	return system.NewReembedder(config, os.Stderr).Run(c.Context, c.String("project"))
}

func listCommand(c *cli.Context) error {
	system, _, cleanup, err := openSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()
	defer system.Close()

	records, err := system.IndexStore().GetByProject(c.Context, c.String("project"), c.Int("limit"))
	if err != nil {
		return err
	}

	for _, record := range records {
		fmt.Printf("seq=%-4d  %s  uploaded=%s  %s\n",
			record.SequenceNumber,
			record.Filename,
			record.UploadedAt.Format(time.RFC3339),
			record.TextDescription,
		)
	}
	return nil
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
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
