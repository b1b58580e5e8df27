package embedding

import (
	"context"

	"go.uber.org/zap"
)

// Fallback wraps an Embedder so that a failed call yields zero vectors
// instead of an error. Ingestion uses it so one bad chunk never aborts a
// document; queries should use the inner embedder directly.
type Fallback struct {
	inner     Embedder
	dimension int
	logger    *zap.Logger
}

func NewFallback(inner Embedder, dimension int, logger *zap.Logger) *Fallback {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Fallback{inner: inner, dimension: dimension, logger: logger}
}

func (f *Fallback) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := f.inner.EmbedQuery(ctx, text)
	if err != nil {
		f.logger.Warn("embedding failed, using zero vector",
			zap.Int("text_length", len(text)),
			zap.Error(err))
		return f.zero(), nil
	}
	return vec, nil
}

func (f *Fallback) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := f.inner.EmbedDocuments(ctx, texts)
	if err == nil && len(vecs) == len(texts) {
		return vecs, nil
	}
	f.logger.Warn("batch embedding failed, using zero vectors",
		zap.Int("batch_size", len(texts)),
		zap.Error(err))

	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = f.zero()
	}
	return out, nil
}

func (f *Fallback) Dimension() int {
	return f.dimension
}

func (f *Fallback) zero() []float32 {
	return make([]float32, f.dimension)
}
