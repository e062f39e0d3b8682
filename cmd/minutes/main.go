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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/minutes"
	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/ai/insights"
	"github.com/poiesic/minutes/ai/openai"
	"github.com/poiesic/minutes/config"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/ingestion"
	"github.com/poiesic/minutes/reembed"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

// newEmbedder builds the embedding provider. Tests replace it with a mock.
var newEmbedder = func(cfg *ai.Config) (ai.Embedder, error) {
	return openai.NewEmbedder(cfg)
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "minutes",
		Usage: "Semantic search over meeting transcripts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"MINUTES_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding the corpus files",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
			&cli.IntFlag{
				Name:  "dimension",
				Usage: "Embedding vector dimension",
			},
			&cli.BoolFlag{
				Name:  "cache",
				Usage: "Cache embeddings in a local database",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Index a transcript file (use - for stdin)",
				ArgsUsage: "FILE",
				Action:    addCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Document id (default: random UUID)",
					},
					&cli.StringFlag{
						Name:     "meeting-id",
						Aliases:  []string{"m"},
						Usage:    "Id of the meeting the transcript belongs to",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name (default: the file name)",
					},
					&cli.StringSliceFlag{
						Name:  "meta",
						Usage: "Extra metadata as key=value, repeatable",
					},
				},
			},
			{
				Name:      "import",
				Usage:     "Index every .txt file in a directory, one meeting per file",
				ArgsUsage: "DIR",
				Action:    importCommand,
			},
			{
				Name:      "search",
				Usage:     "Search the corpus and print JSON results",
				ArgsUsage: "QUERY...",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "results",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results (default from config)",
					},
				},
			},
			{
				Name:   "rebuild",
				Usage:  "Re-embed the corpus into a new directory",
				Action: rebuildCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Aliases:  []string{"o"},
						Usage:    "Directory for the rebuilt corpus",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to embed in each batch",
						Value: reembed.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for each embedding call",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:      "insights",
				Usage:     "Recover a meeting summary from a raw model response (use - for stdin)",
				ArgsUsage: "FILE",
				Action:    insightsCommand,
			},
		},
	}
}

// setup loads the configuration, applies global flag overrides and
// installs the default logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
		cfg.Cache.Dir = filepath.Join(cfg.DataDir, config.DefaultCacheDir)
	}
	if c.IsSet("embedding-host") {
		cfg.Embedding.Host = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.Embedding.Model = c.String("embedding-model")
	}
	if c.IsSet("dimension") {
		cfg.Embedding.Dimension = c.Int("dimension")
	}
	if c.IsSet("cache") {
		cfg.Cache.Enabled = c.Bool("cache")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	errWriter := c.App.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(errWriter, &slog.HandlerOptions{
		Level: level,
	})))

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func configFrom(c *cli.Context) config.Config {
	if cfg, ok := c.App.Metadata[configKey].(config.Config); ok {
		return cfg
	}
	return config.Default()
}

func openEngine(c *cli.Context) (*minutes.Engine, error) {
	cfg := configFrom(c)
	aiCfg := cfg.AIConfig()
	if err := aiCfg.Validate(); err != nil {
		return nil, err
	}
	embedder, err := newEmbedder(aiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return minutes.Open(cfg.DataDir,
		minutes.WithConfig(cfg),
		minutes.WithEmbedder(embedder),
		minutes.WithLogger(slog.Default()),
	)
}

func addCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one FILE argument")
	}
	path := c.Args().First()

	text, err := readInput(c, path)
	if err != nil {
		return err
	}

	name := c.String("name")
	if name == "" {
		name = filepath.Base(path)
	}
	meta := core.Metadata{
		OwningEntityID: c.String("meeting-id"),
		DisplayName:    name,
	}
	for _, kv := range c.StringSlice("meta") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid --meta %q: expected key=value", kv)
		}
		if key == core.MetaOwningEntityID || key == core.MetaDisplayName {
			return fmt.Errorf("invalid --meta %q: %s is set by its own flag", kv, key)
		}
		if meta.Extra == nil {
			meta.Extra = make(map[string]any)
		}
		meta.Extra[key] = value
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.AddDocument(c.Context, c.String("id"), text, meta); err != nil {
		return fmt.Errorf("failed to index %s: %w", path, err)
	}
	fmt.Fprintf(c.App.Writer, "Indexed %s (%d documents)\n", name, engine.Len())
	return nil
}

func importCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one DIR argument")
	}
	dir := c.Args().First()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var docs []ingestion.Document
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".txt" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(data)) == "" {
			slog.Warn("skipping empty transcript", "file", entry.Name())
			continue
		}
		docs = append(docs, ingestion.Document{
			Text: string(data),
			Metadata: core.Metadata{
				OwningEntityID: strings.TrimSuffix(entry.Name(), ".txt"),
				DisplayName:    entry.Name(),
			},
		})
	}
	slices.SortFunc(docs, func(a, b ingestion.Document) int {
		return strings.Compare(a.Metadata.DisplayName, b.Metadata.DisplayName)
	})

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	n, err := engine.AddDocuments(c.Context, docs)
	fmt.Fprintf(c.App.Writer, "Imported %d of %d transcripts (%d documents)\n", n, len(docs), engine.Len())
	return err
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("expected a QUERY argument")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	results, err := engine.SemanticSearch(c.Context, query, c.Int("results"))
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, results)
}

func rebuildCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	progress := c.App.ErrWriter
	if progress == nil {
		progress = os.Stderr
	}
	_, err = engine.Rebuild(c.Context, c.String("out"), &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}, progress)
	return err
}

func insightsCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one FILE argument")
	}
	raw, err := readInput(c, c.Args().First())
	if err != nil {
		return err
	}

	result := insights.Parse(raw)
	if result.Stage == insights.StageFallback {
		slog.Warn("response was not valid JSON, using raw text as summary")
	} else {
		slog.Debug("parsed model response", "stage", result.Stage)
	}
	return writeJSON(c.App.Writer, result)
}

func readInput(c *cli.Context, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		reader := c.App.Reader
		if reader == nil {
			reader = os.Stdin
		}
		data, err = io.ReadAll(reader)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return "", errors.New("input is empty")
	}
	return string(data), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
