package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/core"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBatchSize is the number of documents embedded per provider call in AddDocuments.
const DefaultBatchSize = 16

// Corpus is the write side of a corpus.Corpus.
type Corpus interface {
	Append(vec []float32, rec core.DocumentRecord) (core.Ordinal, error)
}

// Document is one unit of input to AddDocuments.
type Document struct {
	ID       string
	Text     string
	Metadata core.Metadata
}

// Pipeline orchestrates embedding and indexing of documents.
type Pipeline struct {
	corpus        Corpus
	embeddingPool *ants.Pool
	embeddingProc *embeddingProcessor
	batchSize     int
	timeout       time.Duration
	indexed       prometheus.Counter
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}

		embeddingPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = embeddingPool
		return nil
	}
}

// WithBatchSize sets how many documents AddDocuments embeds per provider call.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithTimeout bounds every embedding call. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) error {
		if timeout < 0 {
			return fmt.Errorf("negative embedding timeout %s", timeout)
		}
		p.timeout = timeout
		return nil
	}
}

// WithIndexedCounter counts every committed document.
func WithIndexedCounter(counter prometheus.Counter) Option {
	return func(p *Pipeline) error {
		p.indexed = counter
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(corpus Corpus, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if corpus == nil {
		return nil, ErrCorpusRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	// Create pipeline with defaults
	p := &Pipeline{
		corpus:        corpus,
		embeddingPool: embeddingPool,
		batchSize:     DefaultBatchSize,
		logger:        slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Create the processor after options are applied (so it gets final config)
	p.embeddingProc, err = newEmbeddingProcessor(embedder, p.timeout, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}

	return p, nil
}

// AddDocument embeds text and appends it to the corpus. An empty docID is
// replaced with a random UUID. The stored record is returned.
//
// The document is either fully indexed and persisted or not indexed at all.
func (p *Pipeline) AddDocument(ctx context.Context, docID, text string, metadata core.Metadata) (core.DocumentRecord, error) {
	rec, err := newRecord(docID, text, metadata)
	if err != nil {
		return core.DocumentRecord{}, err
	}

	vec, err := p.embeddingProc.embedOne(ctx, rec.Text)
	if err != nil {
		return core.DocumentRecord{}, err
	}

	if err := p.commit(vec, rec); err != nil {
		return core.DocumentRecord{}, err
	}
	return rec, nil
}

// AddDocuments indexes docs in input order. Embeddings are generated in
// batches on the worker pool; documents are then committed one at a time.
// Indexing stops at the first failure and the number of committed documents
// is returned with the error.
func (p *Pipeline) AddDocuments(ctx context.Context, docs []Document) (int, error) {
	records := make([]core.DocumentRecord, len(docs))
	for i, doc := range docs {
		rec, err := newRecord(doc.ID, doc.Text, doc.Metadata)
		if err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
		records[i] = rec
	}

	vectors, errs := p.embedAll(ctx, records)

	for i, rec := range records {
		if errs[i] != nil {
			return i, fmt.Errorf("document %d (%s): %w", i, rec.ID, errs[i])
		}
		if err := p.commit(vectors[i], rec); err != nil {
			return i, fmt.Errorf("document %d (%s): %w", i, rec.ID, err)
		}
	}

	p.logger.Info("documents indexed", "documents", len(records))
	return len(records), nil
}

// embedAll embeds records in batches on the pool. errs[i] is set for every
// record whose batch failed.
func (p *Pipeline) embedAll(ctx context.Context, records []core.DocumentRecord) ([][]float32, []error) {
	vectors := make([][]float32, len(records))
	errs := make([]error, len(records))

	var wg sync.WaitGroup
	for start := 0; start < len(records); start += p.batchSize {
		end := min(start+p.batchSize, len(records))

		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = records[start+i].Text
		}

		wg.Add(1)
		task := func() {
			defer wg.Done()
			embeddings, err := p.embeddingProc.embedBatch(ctx, texts)
			for i := start; i < end; i++ {
				if err != nil {
					errs[i] = err
					continue
				}
				vectors[i] = embeddings[i-start]
			}
		}
		if err := p.embeddingPool.Submit(task); err != nil {
			wg.Done()
			for i := start; i < end; i++ {
				errs[i] = fmt.Errorf("submit embedding task: %w", err)
			}
		}
	}
	wg.Wait()

	return vectors, errs
}

func (p *Pipeline) commit(vec []float32, rec core.DocumentRecord) error {
	ordinal, err := p.corpus.Append(vec, rec)
	if err != nil {
		p.logger.Error("error indexing document", "id", rec.ID, "err", err)
		return err
	}
	if p.indexed != nil {
		p.indexed.Inc()
	}
	p.logger.Debug("document indexed", "id", rec.ID, "ordinal", ordinal, "owner", rec.Metadata.OwningEntityID)
	return nil
}

func newRecord(docID, text string, metadata core.Metadata) (core.DocumentRecord, error) {
	if docID == "" {
		docID = uuid.NewString()
	}
	rec := core.DocumentRecord{
		ID:       docID,
		Text:     text,
		Metadata: metadata,
	}
	if err := core.ValidateDocument(&rec); err != nil {
		// Blank text can never be embedded.
		if errors.Is(err, core.ErrEmptyText) {
			err = fmt.Errorf("%w: %w", ai.ErrEmbedding, err)
		}
		return core.DocumentRecord{}, err
	}
	return rec, nil
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
