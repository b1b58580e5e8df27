package agent

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

type ModelConfig struct {
	Provider        string
	Model           string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaURL       string
}

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-3-5-sonnet-latest"
	defaultOllamaModel    = "llama3.1"
)

// NewModel builds the chat model for cfg.Provider.
func NewModel(cfg ModelConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "", "openai":
		opts := []openai.Option{openai.WithModel(orDefault(cfg.Model, defaultOpenAIModel))}
		if cfg.OpenAIAPIKey != "" {
			opts = append(opts, openai.WithToken(cfg.OpenAIAPIKey))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		return llm, nil
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithModel(orDefault(cfg.Model, defaultAnthropicModel))}
		if cfg.AnthropicAPIKey != "" {
			opts = append(opts, anthropic.WithToken(cfg.AnthropicAPIKey))
		}
		llm, err := anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("anthropic: %w", err)
		}
		return llm, nil
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(orDefault(cfg.Model, defaultOllamaModel))}
		if cfg.OllamaURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.OllamaURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("ollama: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
