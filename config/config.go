package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreQdrant   = "qdrant"
	StoreMemory   = "memory"

	ProviderOpenAI    = "openai"
	ProviderTEI       = "tei"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"

	FetcherHTTP    = "http"
	FetcherBrowser = "browser"
)

type Config struct {
	AppPort  int    `validate:"min=1,max=65535"`
	LogLevel string `validate:"omitempty,oneof=debug info warn error"`

	StoreBackend     string `validate:"oneof=postgres qdrant memory"`
	DatabaseURL      string `validate:"required_if=StoreBackend postgres"`
	QdrantHost       string `validate:"required_if=StoreBackend qdrant"`
	QdrantPort       int
	QdrantCollection string
	SitePagesTable   string

	EmbeddingProvider string `validate:"oneof=openai tei"`
	OpenAIAPIKey      string
	EmbeddingModel    string
	EmbeddingDim      int    `validate:"min=1"`
	TEIURL            string `validate:"required_if=EmbeddingProvider tei,omitempty,url"`

	LLMProvider     string `validate:"oneof=openai anthropic ollama"`
	LLMModel        string
	AnthropicAPIKey string
	OllamaURL       string

	Encompass Encompass

	CrawlMaxConcurrent int    `validate:"min=1"`
	ChunkSize          int    `validate:"min=1"`
	ChunkStrategy      string `validate:"oneof=boundary markdown recursive"`
	CrawlFetcher       string `validate:"oneof=http browser"`
	CrawlStatePath     string
	CrawlSourcesPath   string
	CrawlRecrawl       bool
}

// Encompass holds the loan API credentials. They are checked where the
// loan client is built, since ingestion runs without them.
type Encompass struct {
	InstanceID   string
	UserID       string
	Password     string
	ClientID     string
	ClientSecret string
	TokenURL     string
	PipelineURL  string
	TokenCache   bool
}

// Source is one entry of the crawl sources file.
type Source struct {
	Source   string   `yaml:"source"`
	Sitemaps []string `yaml:"sitemaps"`
	URLs     []string `yaml:"urls"`
	Topics   []string `yaml:"topics"`
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

func Load() (*Config, error) {
	var errs []error
	intEnv := func(key string, def int) int {
		v, err := getInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	boolEnv := func(key string, def bool) bool {
		v, err := getBool(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		AppPort:  intEnv("APP_PORT", 8080),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", StorePostgres)),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		QdrantHost:       getEnv("QDRANT_HOST", ""),
		QdrantPort:       intEnv("QDRANT_PORT", 6334),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "site_pages"),
		SitePagesTable:   getEnv("SITE_PAGES_TABLE", "site_pages"),

		EmbeddingProvider: strings.ToLower(getEnv("EMBEDDING_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:      intEnv("EMBEDDING_DIM", 1536),
		TEIURL:            getEnv("TEI_URL", ""),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		LLMModel:        getEnv("LLM_MODEL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaURL:       getEnv("OLLAMA_URL", ""),

		Encompass: Encompass{
			InstanceID:   getEnv("ENCOMPASS_INSTANCE_ID", ""),
			UserID:       getEnv("ENCOMPASS_USER_ID", ""),
			Password:     getEnv("ENCOMPASS_USER_PWD", ""),
			ClientID:     getEnv("ENCOMPASS_API_CLIENT_ID", ""),
			ClientSecret: getEnv("ENCOMPASS_API_CLIENT_SECRET", ""),
			TokenURL:     getEnv("ENCOMPASS_TOKEN_URL", ""),
			PipelineURL:  getEnv("ENCOMPASS_PIPELINE_URL", ""),
			TokenCache:   boolEnv("ENCOMPASS_TOKEN_CACHE", true),
		},

		CrawlMaxConcurrent: intEnv("CRAWL_MAX_CONCURRENT", 5),
		ChunkSize:          intEnv("CHUNK_SIZE", 5000),
		ChunkStrategy:      strings.ToLower(getEnv("CHUNK_STRATEGY", "boundary")),
		CrawlFetcher:       strings.ToLower(getEnv("CRAWL_FETCHER", FetcherHTTP)),
		CrawlStatePath:     getEnv("CRAWL_STATE_PATH", "crawl_state.db"),
		CrawlSourcesPath:   getEnv("CRAWL_SOURCES", "sources.yaml"),
		CrawlRecrawl:       boolEnv("CRAWL_RECRAWL", false),
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadSources reads the crawl sources YAML file.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}

	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources %s: %w", path, err)
	}
	for i, s := range f.Sources {
		if len(s.Sitemaps) == 0 && len(s.URLs) == 0 {
			return nil, fmt.Errorf("source %d (%s) has no sitemaps or urls", i, s.Source)
		}
	}
	return f.Sources, nil
}

func getEnv(key, def string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	return value
}

func getInt(key string, def int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, def bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("environment variable %s: %w", key, err)
	}
	return v, nil
}
