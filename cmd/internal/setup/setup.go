// Package setup builds the shared components the entry points wire
// together from config.
package setup

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"encompass-agent/agent"
	"encompass-agent/config"
	"encompass-agent/encompass"
	"encompass-agent/pkg/embedding"
	"encompass-agent/pkg/memstore"
	"encompass-agent/pkg/postgres"
	"encompass-agent/pkg/qdrantdb"
	"encompass-agent/repository"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// LoadConfig reads .env when present and then the environment.
func LoadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	return config.Load()
}

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.LogLevel == "debug" {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	if err := zc.Level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return zc.Build()
}

// NewStore opens the configured site pages backend and makes sure its
// schema exists. The returned func releases it.
func NewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.SitePageRepo, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pg, err := postgres.NewClient(ctx, cfg.DatabaseURL, cfg.SitePagesTable, cfg.EmbeddingDim)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		logger.Info("using postgres store", zap.String("table", cfg.SitePagesTable))
		return pg, pg.Close, nil

	case config.StoreQdrant:
		qdb, err := qdrantdb.NewClient(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, cfg.EmbeddingDim)
		if err != nil {
			return nil, nil, err
		}
		if err := qdb.CreateSitePagesCollection(ctx); err != nil {
			_ = qdb.Close()
			return nil, nil, err
		}
		logger.Info("using qdrant store", zap.String("collection", cfg.QdrantCollection))
		return qdb, func() { _ = qdb.Close() }, nil

	case config.StoreMemory:
		logger.Warn("using in-memory store, pages are lost on exit")
		return memstore.New(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func NewEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderTEI:
		return embedding.NewTEI(cfg.TEIURL), nil
	case config.ProviderOpenAI:
		e, err := embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.EmbeddingModel,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// NewLoanClient validates the Encompass credentials and returns a loan
// client whose tokens come from the password grant.
func NewLoanClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*encompass.Client, error) {
	creds := encompass.Credentials{
		TokenURL:     cfg.Encompass.TokenURL,
		InstanceID:   cfg.Encompass.InstanceID,
		UserID:       cfg.Encompass.UserID,
		Password:     cfg.Encompass.Password,
		ClientID:     cfg.Encompass.ClientID,
		ClientSecret: cfg.Encompass.ClientSecret,
	}
	if creds.TokenURL == "" {
		creds.TokenURL = encompass.DefaultTokenURL
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 120 * time.Second,
		},
		Timeout: 5 * time.Minute,
	}
	auth := encompass.NewAuthenticator(creds, httpClient, logger)
	tokens := auth.TokenSource(ctx, cfg.Encompass.TokenCache)
	return encompass.NewClient(httpClient, cfg.Encompass.PipelineURL, tokens, logger), nil
}

// NewAgent builds the tool-calling agent on the configured LLM provider.
func NewAgent(cfg *config.Config, docs agent.Docs, loans agent.Loans, logger *zap.Logger) (*agent.Agent, error) {
	model, err := agent.NewModel(agent.ModelConfig{
		Provider:        cfg.LLMProvider,
		Model:           cfg.LLMModel,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OllamaURL:       cfg.OllamaURL,
	})
	if err != nil {
		return nil, err
	}
	return agent.New(model, agent.NewTools(docs, loans), logger), nil
}
