package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const DefaultOpenAIModel = "text-embedding-3-small"

type OpenAIConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	BatchSize int
}

// OpenAI embeds through the OpenAI embeddings endpoint.
type OpenAI struct {
	embedder *embeddings.EmbedderImpl
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	var embedOpts []embeddings.Option
	if cfg.BatchSize > 0 {
		embedOpts = append(embedOpts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(llm, embedOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &OpenAI{embedder: embedder}, nil
}

func (o *OpenAI) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := o.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("openai embed documents: %w", err)
	}
	return vecs, nil
}

func (o *OpenAI) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := o.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("openai embed query: %w", err)
	}
	return vec, nil
}
