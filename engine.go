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

// Package minutes is an embedded semantic search engine for meeting
// transcripts. An Engine owns a corpus directory, an embedding provider and
// the searcher and ingestion pipeline built on them.
package minutes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/ai/cached"
	"github.com/poiesic/minutes/ai/openai"
	"github.com/poiesic/minutes/config"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/ingestion"
	"github.com/poiesic/minutes/metrics"
	"github.com/poiesic/minutes/reembed"
	"github.com/poiesic/minutes/search"
	"github.com/poiesic/minutes/storage/badger"
	"github.com/poiesic/minutes/storage/corpus"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine ties a corpus to an embedder. It is safe for concurrent use:
// any number of searches may run while at most one document is committed.
type Engine struct {
	corpus   *corpus.Corpus
	embedder ai.Embedder
	cache    *badger.EmbeddingCache
	searcher *search.Searcher
	pipeline *ingestion.Pipeline
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Option configures an Engine.
type Option func(*engineOptions) error

type engineOptions struct {
	aiConfig   *ai.Config
	dimension  int
	embedder   ai.Embedder
	cacheDir   string
	registerer prometheus.Registerer
	logger     *slog.Logger
	searchOpts []search.Option
	ingestOpts []ingestion.Option
}

// WithAIConfig sets the embedding provider configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *engineOptions) error {
		if cfg == nil {
			return errors.New("nil ai config")
		}
		o.aiConfig = cfg
		return nil
	}
}

// WithConfig applies a loaded configuration file: embedding, search,
// ingestion and cache settings. The data directory is the one passed to Open.
func WithConfig(cfg config.Config) Option {
	return func(o *engineOptions) error {
		o.aiConfig = cfg.AIConfig()
		o.searchOpts = append(o.searchOpts,
			search.WithDefaultResults(cfg.Search.DefaultResults),
			search.WithOversample(cfg.Search.Oversample),
			search.WithTimeout(cfg.Search.Timeout),
		)
		o.ingestOpts = append(o.ingestOpts,
			ingestion.WithBatchSize(cfg.Ingestion.BatchSize),
			ingestion.WithTimeout(cfg.Embedding.Timeout),
		)
		if cfg.Ingestion.PoolSize > 0 {
			o.ingestOpts = append(o.ingestOpts, ingestion.WithPoolSize(cfg.Ingestion.PoolSize))
		}
		if cfg.Cache.Enabled {
			o.cacheDir = cfg.Cache.Dir
		}
		return nil
	}
}

// WithEmbedder replaces the default OpenAI-compatible embedder. The
// embedder must produce vectors of the configured dimension.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *engineOptions) error {
		o.embedder = embedder
		return nil
	}
}

// WithDimension sets the vector dimension of the corpus. It takes
// precedence over the dimension of any embedding configuration, whatever
// the option order.
func WithDimension(dim int) Option {
	return func(o *engineOptions) error {
		if dim < 1 {
			return fmt.Errorf("dimension must be positive, got %d", dim)
		}
		o.dimension = dim
		return nil
	}
}

// WithEmbeddingCache keeps embeddings in a badger database at dir so
// identical text is never sent to the provider twice.
func WithEmbeddingCache(dir string) Option {
	return func(o *engineOptions) error {
		o.cacheDir = dir
		return nil
	}
}

// WithRegisterer registers the engine's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *engineOptions) error {
		o.registerer = reg
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithSearchOptions passes extra options to the searcher.
func WithSearchOptions(opts ...search.Option) Option {
	return func(o *engineOptions) error {
		o.searchOpts = append(o.searchOpts, opts...)
		return nil
	}
}

// WithIngestionOptions passes extra options to the ingestion pipeline.
func WithIngestionOptions(opts ...ingestion.Option) Option {
	return func(o *engineOptions) error {
		o.ingestOpts = append(o.ingestOpts, opts...)
		return nil
	}
}

// Open loads or creates the corpus in dir and assembles the engine.
func Open(dir string, opts ...Option) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	if options.dimension > 0 {
		// Work on a copy; the caller's config is left as it was.
		cfg := *options.aiConfig
		cfg.Dimension = options.dimension
		options.aiConfig = &cfg
	}
	logger := options.logger

	// Collectors are registered once everything else is up, so a failed
	// Open leaves the registerer untouched.
	m, err := metrics.New(nil)
	if err != nil {
		return nil, err
	}

	c, err := corpus.Open(dir, options.aiConfig.Dimension, corpus.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			return nil, err
		}
	}
	embedder = m.InstrumentEmbedder(embedder)

	e := &Engine{
		corpus:  c,
		metrics: m,
		logger:  logger.With("component", "engine"),
	}

	if options.cacheDir != "" {
		e.cache, err = badger.OpenEmbeddingCache(options.cacheDir, logger)
		if err != nil {
			return nil, err
		}
		embedder, err = cached.New(embedder, e.cache, options.aiConfig.EmbeddingModel,
			cached.WithLogger(logger),
			cached.WithCounter(m.EmbeddingCache),
		)
		if err != nil {
			e.closeCache()
			return nil, err
		}
	}
	e.embedder = embedder

	searchOpts := append([]search.Option{search.WithLogger(logger)}, options.searchOpts...)
	e.searcher, err = search.NewSearcher(c, embedder, searchOpts...)
	if err != nil {
		e.closeCache()
		return nil, err
	}

	ingestOpts := append([]ingestion.Option{
		ingestion.WithLogger(logger),
		ingestion.WithIndexedCounter(m.DocumentsIndexed),
	}, options.ingestOpts...)
	e.pipeline, err = ingestion.NewPipeline(c, embedder, ingestOpts...)
	if err != nil {
		e.closeCache()
		return nil, err
	}

	if err := m.Register(options.registerer); err != nil {
		e.pipeline.Release()
		e.closeCache()
		return nil, err
	}

	e.logger.Info("engine ready", "dir", dir, "documents", c.Len(), "dimension", c.Dimension(),
		"cache", options.cacheDir != "")
	return e, nil
}

// AddDocument embeds text and appends it with metadata to the corpus. The
// document is durable when AddDocument returns nil. An empty docID is
// replaced with a random UUID.
func (e *Engine) AddDocument(ctx context.Context, docID, text string, metadata core.Metadata) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}

	_, err := e.pipeline.AddDocument(ctx, docID, text, metadata)
	return err
}

// AddDocuments indexes docs in order and returns how many were committed.
func (e *Engine) AddDocuments(ctx context.Context, docs []ingestion.Document) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return 0, ErrClosed
	}

	return e.pipeline.AddDocuments(ctx, docs)
}

// SemanticSearch returns up to n results for query, one per owning entity,
// best first. n <= 0 selects the configured default.
func (e *Engine) SemanticSearch(ctx context.Context, query string, n int) ([]core.QueryResult, error) {
	return e.SemanticSearchWithMonitor(ctx, query, n, nil)
}

// SemanticSearchWithMonitor is SemanticSearch with a monitor observing each stage.
func (e *Engine) SemanticSearchWithMonitor(ctx context.Context, query string, n int, monitor search.SearchMonitor) ([]core.QueryResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	return e.searcher.SearchWithMonitor(ctx, query, n, search.Monitors(e.metrics.QueryMonitor(), monitor))
}

// Rebuild embeds every document again with the engine's embedder and writes
// a new corpus to targetDir. The engine's own corpus is left untouched.
func (e *Engine) Rebuild(ctx context.Context, targetDir string, cfg *reembed.Config, progress io.Writer) (reembed.Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return reembed.Result{}, ErrClosed
	}

	r, err := reembed.NewReembedder(e.embedder, cfg, progress, reembed.WithLogger(e.logger))
	if err != nil {
		return reembed.Result{}, err
	}
	return r.Run(ctx, e.corpus.Dir(), targetDir, e.corpus.Dimension())
}

// Len returns the number of indexed documents.
func (e *Engine) Len() int {
	return e.corpus.Len()
}

// Dir returns the corpus directory.
func (e *Engine) Dir() string {
	return e.corpus.Dir()
}

// Metrics returns the engine's collectors.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// Close releases the worker pool and the embedding cache. The corpus is
// persisted on every write, so nothing is flushed here.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	e.pipeline.Release()
	return e.closeCache()
}

func (e *Engine) closeCache() error {
	if e.cache == nil {
		return nil
	}
	if err := e.cache.Close(); err != nil {
		e.logger.Error("error closing embedding cache", "err", err)
		return err
	}
	return nil
}
