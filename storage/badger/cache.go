package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/minutes/ai/cached"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
)

// EmbeddingCache stores embedding vectors keyed by content hash.
type EmbeddingCache struct {
	backend *Backend
	owned   bool
	logger  *slog.Logger
}

var _ cached.Cache = (*EmbeddingCache)(nil)

// NewEmbeddingCache creates a cache on an existing backend.
// The caller remains responsible for closing the backend.
func NewEmbeddingCache(backend *Backend) (*EmbeddingCache, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	return &EmbeddingCache{
		backend: backend,
		logger:  backend.logger.With("component", "embedding-cache-store"),
	}, nil
}

// OpenEmbeddingCache opens a cache backed by its own database at path.
// Close releases the database.
func OpenEmbeddingCache(path string, logger *slog.Logger) (*EmbeddingCache, error) {
	backend, err := OpenBackend(path, false, logger)
	if err != nil {
		return nil, err
	}
	c, err := NewEmbeddingCache(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// Get returns the vector stored under key. A missing key is not an error.
func (c *EmbeddingCache) Get(ctx context.Context, key core.ID) ([]float32, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if c.backend.IsClosed() {
		return nil, false, storage.ErrStorageClosed
	}

	var vec []float32
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEmbeddingKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			vec, err = storage.UnmarshalVector(val)
			return err
		})
	}, false)

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Put stores vec under key, replacing any previous value.
func (c *EmbeddingCache) Put(ctx context.Context, key core.ID, vec []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	return c.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeEmbeddingKey(key), storage.MarshalVector(vec)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Count returns the number of cached vectors.
func (c *EmbeddingCache) Count(ctx context.Context) (int, error) {
	if c.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}

	count := 0
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(embeddingPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	}, false)
	return count, err
}

// Close closes the underlying database if the cache opened it.
func (c *EmbeddingCache) Close() error {
	if !c.owned || c.backend.IsClosed() {
		return nil
	}
	c.logger.Debug("closing embedding cache")
	return c.backend.Close()
}
