package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AppPort != 8080 {
		t.Errorf("AppPort = %d, want 8080", cfg.AppPort)
	}
	if cfg.ChunkSize != 5000 || cfg.CrawlMaxConcurrent != 5 {
		t.Errorf("ChunkSize = %d, CrawlMaxConcurrent = %d", cfg.ChunkSize, cfg.CrawlMaxConcurrent)
	}
	if cfg.EmbeddingDim != 1536 {
		t.Errorf("EmbeddingDim = %d, want 1536", cfg.EmbeddingDim)
	}
	if !cfg.Encompass.TokenCache {
		t.Error("TokenCache = false, want true by default")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "postgres without url", env: map[string]string{"STORE_BACKEND": "postgres", "DATABASE_URL": ""}},
		{name: "qdrant without host", env: map[string]string{"STORE_BACKEND": "qdrant"}},
		{name: "unknown backend", env: map[string]string{"STORE_BACKEND": "sqlite"}},
		{name: "bad port", env: map[string]string{"STORE_BACKEND": "memory", "APP_PORT": "http"}},
		{name: "bad bool", env: map[string]string{"STORE_BACKEND": "memory", "CRAWL_RECRAWL": "maybe"}},
		{name: "tei without url", env: map[string]string{"STORE_BACKEND": "memory", "EMBEDDING_PROVIDER": "tei"}},
		{name: "zero chunk size", env: map[string]string{"STORE_BACKEND": "memory", "CHUNK_SIZE": "0"}},
		{name: "unknown fetcher", env: map[string]string{"STORE_BACKEND": "memory", "CRAWL_FETCHER": "curl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "qdrant")
	t.Setenv("QDRANT_HOST", "localhost")
	t.Setenv("CHUNK_STRATEGY", "Markdown")
	t.Setenv("ENCOMPASS_TOKEN_CACHE", "false")
	t.Setenv("CRAWL_RECRAWL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkStrategy != "markdown" {
		t.Errorf("ChunkStrategy = %q", cfg.ChunkStrategy)
	}
	if cfg.Encompass.TokenCache || !cfg.CrawlRecrawl {
		t.Errorf("TokenCache = %v, CrawlRecrawl = %v", cfg.Encompass.TokenCache, cfg.CrawlRecrawl)
	}
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	content := `sources:
  - source: encompass_devconnect_docs
    sitemaps:
      - https://developer.icemortgagetechnology.com/sitemap.xml
    topics: [pipeline, loan]
  - source: extra
    urls: [https://example.com/a]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	sources, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources() error = %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("len(sources) = %d, want 2", len(sources))
	}
	if sources[0].Topics[1] != "loan" || sources[1].URLs[0] != "https://example.com/a" {
		t.Errorf("sources = %+v", sources)
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("sources:\n  - source: nothing\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSources(empty); err == nil {
		t.Error("LoadSources() error = nil for source without sitemaps or urls")
	}
}
