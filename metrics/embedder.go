package metrics

import (
	"context"
	"time"

	"github.com/poiesic/minutes/ai"
)

// Operation label values.
const (
	OpEmbedText  = "embed_text"
	OpEmbedTexts = "embed_texts"
)

type instrumentedEmbedder struct {
	inner ai.Embedder
	m     *Metrics
}

// InstrumentEmbedder counts and times every call made to inner.
func (m *Metrics) InstrumentEmbedder(inner ai.Embedder) ai.Embedder {
	return &instrumentedEmbedder{inner: inner, m: m}
}

func (e *instrumentedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := e.inner.EmbedText(ctx, text)
	e.observe(OpEmbedText, start, err)
	return vec, err
}

func (e *instrumentedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := e.inner.EmbedTexts(ctx, texts)
	e.observe(OpEmbedTexts, start, err)
	return vecs, err
}

func (e *instrumentedEmbedder) observe(op string, start time.Time, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	e.m.EmbeddingRequests.WithLabelValues(op, status).Inc()
	e.m.EmbeddingDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
