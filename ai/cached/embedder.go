// Package cached provides an ai.Embedder decorator that stores vectors in a
// content-addressed cache so identical text is embedded only once per model.
package cached

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/core"
	"github.com/prometheus/client_golang/prometheus"
)

// Cache is the store consulted before the inner embedder is called.
type Cache interface {
	// Get returns the cached vector for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key core.ID) ([]float32, bool, error)
	Put(ctx context.Context, key core.ID, vec []float32) error
}

// Option configures an Embedder.
type Option func(*Embedder) error

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Embedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "embedding-cache")
		return nil
	}
}

// WithCounter records lookups on a counter vec with a single "result" label
// ("hit" or "miss").
func WithCounter(counter *prometheus.CounterVec) Option {
	return func(e *Embedder) error {
		e.counter = counter
		return nil
	}
}

// Embedder wraps another ai.Embedder with a Cache.
type Embedder struct {
	inner   ai.Embedder
	cache   Cache
	model   string
	counter *prometheus.CounterVec
	logger  *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// New creates a caching decorator. model namespaces the keys so switching
// models never returns stale vectors.
func New(inner ai.Embedder, cache Cache, model string, opts ...Option) (*Embedder, error) {
	if inner == nil || cache == nil {
		return nil, fmt.Errorf("cached embedder requires an inner embedder and a cache")
	}
	e := &Embedder{
		inner:  inner,
		cache:  cache,
		model:  model,
		logger: slog.Default().With("component", "embedding-cache"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Key returns the cache key used for text under model.
func Key(model, text string) core.ID {
	return core.IDFromContent(model + "\x00" + text)
}

// EmbedText returns the cached vector for text or embeds and caches it.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ai.CheckInput(text); err != nil {
		return nil, err
	}

	key := Key(e.model, text)
	if vec, ok := e.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := e.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	e.store(ctx, key, vec)
	return vec, nil
}

// EmbedTexts serves what it can from the cache and sends the remaining texts
// to the inner embedder in one batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]core.ID, len(texts))
	var missing []int

	for i, text := range texts {
		if err := ai.CheckInput(text); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		keys[i] = Key(e.model, text)
		if vec, ok := e.lookup(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}
	vectors, err := e.inner.EmbedTexts(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("%w: expected %d vectors, received %d", ai.ErrEmbedding, len(batch), len(vectors))
	}
	for j, i := range missing {
		out[i] = vectors[j]
		e.store(ctx, keys[i], vectors[j])
	}
	return out, nil
}

func (e *Embedder) lookup(ctx context.Context, key core.ID) ([]float32, bool) {
	vec, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("failed to read cached embedding", "key", key, "err", err)
		ok = false
	}
	if ok && len(vec) == 0 {
		ok = false
	}
	e.count(ok)
	return vec, ok
}

func (e *Embedder) store(ctx context.Context, key core.ID, vec []float32) {
	if err := e.cache.Put(ctx, key, vec); err != nil {
		e.logger.Warn("failed to cache embedding", "key", key, "err", err)
	}
}

func (e *Embedder) count(hit bool) {
	if e.counter == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	e.counter.WithLabelValues(result).Inc()
}
