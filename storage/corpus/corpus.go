package corpus

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
	"github.com/poiesic/minutes/storage/flat"
	"github.com/poiesic/minutes/storage/jsonstore"
)

// File names inside a corpus directory.
const (
	IndexFile    = "vectors.bin"
	MetadataFile = "metadata.json"
)

// Option configures a Corpus.
type Option func(*Corpus) error

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Corpus) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "corpus")
		return nil
	}
}

// Corpus pairs a vector index with its document store. Both share one ordinal
// space and are always persisted together. Writers hold an exclusive lock;
// readers share a read lock and never observe a half-applied append.
type Corpus struct {
	mu        sync.RWMutex
	dir       string
	index     storage.VectorIndex
	store     storage.DocumentStore
	indexPath string
	metaPath  string
	logger    *slog.Logger
}

// Open loads the corpus stored in dir, creating the directory if needed.
// Missing files yield an empty corpus. If the two files disagree on size the
// corpus is rejected with storage.ErrCorrupted.
func Open(dir string, dim int, opts ...Option) (*Corpus, error) {
	c := &Corpus{
		dir:       dir,
		indexPath: filepath.Join(dir, IndexFile),
		metaPath:  filepath.Join(dir, MetadataFile),
		logger:    slog.Default().With("component", "corpus"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus directory: %w", err)
	}

	index, err := flat.Load(c.indexPath, dim)
	if err != nil {
		return nil, err
	}
	store, err := jsonstore.Load(c.metaPath)
	if err != nil {
		return nil, err
	}
	if index.Count() != store.Len() {
		return nil, fmt.Errorf("%w: %s holds %d vectors, %s holds %d documents",
			storage.ErrCorrupted, IndexFile, index.Count(), MetadataFile, store.Len())
	}

	c.index = index
	c.store = store
	c.logger.Info("corpus opened", "dir", dir, "documents", store.Len(), "dimension", dim)
	return c, nil
}

// Dir returns the directory holding the corpus files.
func (c *Corpus) Dir() string {
	return c.dir
}

// Dimension returns the vector length accepted by the corpus.
func (c *Corpus) Dimension() int {
	return c.index.Dimension()
}

// Len returns the number of documents.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Len()
}

// Append adds one vector and its document and persists both files. On any
// failure both structures are rolled back, so the document is either fully
// indexed or not at all.
func (c *Corpus) Append(vec []float32, rec core.DocumentRecord) (core.Ordinal, error) {
	ordinals, err := c.AppendBatch([][]float32{vec}, []core.DocumentRecord{rec})
	if err != nil {
		return 0, err
	}
	return ordinals[0], nil
}

// AppendBatch adds several documents under one lock and persists once.
// The batch is applied entirely or not at all.
func (c *Corpus) AppendBatch(vecs [][]float32, recs []core.DocumentRecord) ([]core.Ordinal, error) {
	if len(vecs) != len(recs) {
		return nil, fmt.Errorf("%d vectors for %d documents", len(vecs), len(recs))
	}
	if len(vecs) == 0 {
		return []core.Ordinal{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.store.Len()
	ordinals := make([]core.Ordinal, 0, len(vecs))
	for i := range vecs {
		ordinal, err := c.index.Insert(vecs[i])
		if err != nil {
			c.rollback(prev, false)
			return nil, fmt.Errorf("document %q: %w", recs[i].ID, err)
		}
		stored := c.store.Append(recs[i])
		if stored != ordinal {
			c.rollback(prev, false)
			return nil, fmt.Errorf("%w: vector ordinal %d, document ordinal %d", storage.ErrCorrupted, ordinal, stored)
		}
		ordinals = append(ordinals, ordinal)
	}

	if err := c.persist(); err != nil {
		c.rollback(prev, true)
		return nil, err
	}

	c.logger.Debug("documents appended", "count", len(ordinals), "total", c.store.Len())
	return ordinals, nil
}

// View runs fn with a read-only snapshot while holding the read lock.
// The snapshot must not be retained after fn returns.
func (c *Corpus) View(fn func(storage.Reader) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(snapshot{c})
}

func (c *Corpus) persist() error {
	if err := c.store.Persist(c.metaPath); err != nil {
		return fmt.Errorf("persist documents: %w", err)
	}
	if err := c.index.Persist(c.indexPath); err != nil {
		return fmt.Errorf("persist vectors: %w", err)
	}
	return nil
}

// rollback truncates both structures back to n entries. When the files may
// already hold the failed append they are rewritten as well.
func (c *Corpus) rollback(n int, rewrite bool) {
	err := errors.Join(c.index.Truncate(n), c.store.Truncate(n))
	if err == nil && rewrite {
		err = c.persist()
	}
	if err != nil {
		c.logger.Error("rollback failed, corpus files may be out of sync", "dir", c.dir, "err", err)
	}
}

type snapshot struct {
	c *Corpus
}

func (s snapshot) Count() int {
	return s.c.index.Count()
}

func (s snapshot) Dimension() int {
	return s.c.index.Dimension()
}

func (s snapshot) Search(query []float32, k int) ([]core.Neighbor, error) {
	return s.c.index.Search(query, k)
}

func (s snapshot) Get(ordinal core.Ordinal) (core.DocumentRecord, error) {
	return s.c.store.Get(ordinal)
}
