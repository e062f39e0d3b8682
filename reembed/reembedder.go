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

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage/corpus"
	"github.com/poiesic/minutes/storage/jsonstore"
)

// Config holds configuration for a rebuild.
type Config struct {
	// BatchSize is the number of documents embedded per provider call
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Result summarises a finished rebuild.
type Result struct {
	Documents int
	Written   int
	Skipped   int
	Elapsed   time.Duration
}

// Reembedder rebuilds a corpus with a new embedder.
type Reembedder struct {
	embedder ai.Embedder
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// Option configures a Reembedder.
type Option func(*Reembedder) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "reembedder")
		return nil
	}
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(embedder ai.Embedder, config *Config, progress io.Writer, opts ...Option) (*Reembedder, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reembedder{
		embedder: embedder,
		config:   config,
		progress: progress,
		logger:   slog.Default().With("component", "reembedder"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Run reads every document of the corpus in sourceDir, embeds it again and
// writes the result into a new corpus of dimension dim in targetDir.
// The source is only read. targetDir must not already hold documents.
func (r *Reembedder) Run(ctx context.Context, sourceDir, targetDir string, dim int) (Result, error) {
	same, err := sameDir(sourceDir, targetDir)
	if err != nil {
		return Result{}, err
	}
	if same {
		return Result{}, fmt.Errorf("%w: %s", ErrSameDirectory, targetDir)
	}

	source, err := jsonstore.Load(filepath.Join(sourceDir, corpus.MetadataFile))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read source documents: %w", err)
	}

	total := source.Len()
	if total == 0 {
		fmt.Fprintf(r.progress, "No documents found in %s (0 documents)\n", sourceDir)
		return Result{}, nil
	}

	target, err := corpus.Open(targetDir, dim, corpus.WithLogger(r.logger))
	if err != nil {
		return Result{}, fmt.Errorf("failed to open target corpus: %w", err)
	}
	if n := target.Len(); n > 0 {
		return Result{}, fmt.Errorf("%w: %s holds %d documents", ErrTargetNotEmpty, targetDir, n)
	}

	fmt.Fprintf(r.progress, "Rebuilding %d documents into %s (batch size: %d)\n",
		total, targetDir, r.config.BatchSize)

	processor := NewBatchProcessor(target, r.embedder, r.config.MaxRetries, r.config.RetryDelay, r.logger)
	iterator := NewRecordIterator(source, r.config.BatchSize)
	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	result := Result{Documents: total}
	err = iterator.ForEach(ctx, func(records []core.DocumentRecord) error {
		batch, err := processor.Process(ctx, records)
		result.Written += batch.Written
		result.Skipped += batch.Skipped
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		tracker.Increment(len(records))
		return nil
	})
	tracker.Finish(err == nil)
	result.Elapsed = tracker.Elapsed()

	if err != nil {
		r.logger.Error("rebuild aborted", "source", sourceDir, "target", targetDir, "written", result.Written, "err", err)
		return result, err
	}

	fmt.Fprintf(r.progress, "Rebuild complete. Wrote %d of %d documents in %v (%.1f docs/s)\n",
		result.Written, total, result.Elapsed.Round(time.Millisecond), rate(result.Written, result.Elapsed))
	if result.Skipped > 0 {
		fmt.Fprintf(r.progress, "Skipped %d documents with blank text\n", result.Skipped)
	}
	r.logger.Info("rebuild complete", "source", sourceDir, "target", targetDir, "written", result.Written, "skipped", result.Skipped)
	return result, nil
}

func sameDir(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}
