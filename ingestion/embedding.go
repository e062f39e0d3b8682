package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/minutes/ai"
)

// embeddingProcessor generates embeddings with a per-call timeout.
type embeddingProcessor struct {
	embedder ai.Embedder
	timeout  time.Duration
	logger   *slog.Logger
}

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(embedder ai.Embedder, timeout time.Duration, logger *slog.Logger) (*embeddingProcessor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		embedder: embedder,
		timeout:  timeout,
		logger:   logger.With("processor", "embeddings"),
	}, nil
}

func (ep *embeddingProcessor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ep.timeout > 0 {
		return context.WithTimeout(ctx, ep.timeout)
	}
	return ctx, func() {}
}

// embedOne generates the embedding for a single document text.
func (ep *embeddingProcessor) embedOne(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := ep.withTimeout(ctx)
	defer cancel()

	vec, err := ep.embedder.EmbedText(ctx, text)
	if err != nil {
		ep.logger.Error("error generating embedding", "length", len(text), "err", err)
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ai.ErrEmbedding)
	}
	return vec, nil
}

// embedBatch generates embeddings for texts in one provider call.
func (ep *embeddingProcessor) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := ep.withTimeout(ctx)
	defer cancel()

	ep.logger.Debug("generating embeddings for documents", "documents", len(texts))
	embeddings, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "documents", len(texts), "err", err)
		return nil, err
	}

	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(texts), len(embeddings))
	}
	for i, vec := range embeddings {
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: empty vector for document %d", ai.ErrEmbedding, i)
		}
	}
	return embeddings, nil
}
