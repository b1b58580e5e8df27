package embedding

import (
	"context"
	"math"
)

// DefaultDimension is the vector length of text-embedding-3-small.
const DefaultDimension = 1536

// Embedder converts text to fixed-length vectors. The method set matches
// langchaingo's embeddings.Embedder so either can be used where the other
// is expected.
type Embedder interface {
	// One vector per input text, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}
