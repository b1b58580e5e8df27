package crawler

import (
	"time"
)

type CrawlerConfig struct {
	MaxConcurrent  int
	RequestTimeout time.Duration
	UserAgent      string
	// Recrawl re-ingests pages the ledger already marks as ingested.
	Recrawl bool
	// AllowedDomains restricts fetching; empty allows any host.
	AllowedDomains []string
}

// DefaultConfig returns a default crawler configuration
func DefaultConfig() *CrawlerConfig {
	return &CrawlerConfig{
		MaxConcurrent:  5,
		RequestTimeout: 60 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}
