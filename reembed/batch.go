package reembed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/core"
)

// Target receives rebuilt documents. *corpus.Corpus satisfies it.
type Target interface {
	AppendBatch(vecs [][]float32, recs []core.DocumentRecord) ([]core.Ordinal, error)
}

// BatchResult counts what happened to one batch.
type BatchResult struct {
	Written int
	Skipped int
}

// BatchProcessor embeds batches of documents and appends them to a Target.
type BatchProcessor struct {
	target         Target
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(target Target, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		target:         target,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         logger,
	}
}

// Process embeds records and appends them to the target as one unit.
// Documents with blank text cannot be embedded and are skipped.
func (bp *BatchProcessor) Process(ctx context.Context, records []core.DocumentRecord) (BatchResult, error) {
	var result BatchResult

	kept := make([]core.DocumentRecord, 0, len(records))
	texts := make([]string, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.Text) == "" {
			bp.logger.Warn("skipping document with blank text", "id", rec.ID)
			result.Skipped++
			continue
		}
		kept = append(kept, rec)
		texts = append(texts, rec.Text)
	}
	if len(kept) == 0 {
		return result, nil
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return result, fmt.Errorf("embed batch of %d documents: %w", len(kept), err)
	}
	if len(embeddings) != len(kept) {
		return result, fmt.Errorf("%w: embedding count mismatch: expected %d, got %d", ai.ErrEmbedding, len(kept), len(embeddings))
	}

	if _, err := bp.target.AppendBatch(embeddings, kept); err != nil {
		return result, fmt.Errorf("append batch: %w", err)
	}
	result.Written = len(kept)
	return result, nil
}
