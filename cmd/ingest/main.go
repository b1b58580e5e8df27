package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"encompass-agent/cmd/internal/setup"
	"encompass-agent/config"
	"encompass-agent/crawler"
	"encompass-agent/ingest"
	"encompass-agent/pkg/chunking"
	"encompass-agent/pkg/embedding"
	"encompass-agent/repository"

	"go.uber.org/zap"
)

func main() {
	listOnly := flag.Bool("list", false, "only print the urls that would be crawled")
	flag.Parse()

	// =========
	// Config
	// =========
	cfg, err := setup.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	sources, err := config.LoadSources(cfg.CrawlSourcesPath)
	if err != nil {
		log.Fatalf("Failed to load crawl sources: %v", err)
	}

	// =========
	// Logging
	// =========
	logger, err := setup.NewLogger(cfg)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	crawlCfg := crawler.DefaultConfig()
	crawlCfg.MaxConcurrent = cfg.CrawlMaxConcurrent
	crawlCfg.Recrawl = cfg.CrawlRecrawl

	// =========
	// Sitemaps
	// =========
	sitemaps := crawler.NewSitemapReader(crawlCfg, logger)
	validator := crawler.NewURLValidator(crawlCfg)
	urlsBySource := make(map[string][]string, len(sources))
	for _, src := range sources {
		urls := append([]string(nil), src.URLs...)
		for _, sm := range src.Sitemaps {
			locs, err := sitemaps.Read(ctx, sm)
			if err != nil {
				logger.Error("failed to read sitemap", zap.String("sitemap", sm), zap.Error(err))
				continue
			}
			urls = append(urls, locs...)
		}
		name := src.Source
		if name == "" {
			name = repository.DefaultSource
		}
		filtered := crawler.FilterByTopics(validator.Filter(urls), src.Topics)
		urlsBySource[name] = append(urlsBySource[name], filtered...)
		logger.Info("resolved crawl source",
			zap.String("source", name),
			zap.Int("urls", len(urls)),
			zap.Int("after_topic_filter", len(filtered)))
	}

	if *listOnly {
		for name, urls := range urlsBySource {
			for _, u := range urls {
				fmt.Printf("%s\t%s\n", name, u)
			}
		}
		return
	}

	// =========
	// Store
	// =========
	store, closeStore, err := setup.NewStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	// =========
	// Embedding Client
	// =========
	embedder, err := setup.NewEmbedder(cfg)
	if err != nil {
		logger.Fatal("failed to create embedder", zap.Error(err))
	}
	embedder = embedding.NewFallback(embedder, cfg.EmbeddingDim, logger)

	// =========
	// Chunking Client
	// =========
	splitter, err := chunking.New(cfg.ChunkStrategy, cfg.ChunkSize)
	if err != nil {
		logger.Fatal("failed to create chunker", zap.Error(err))
	}
	var procOpts []ingest.Option
	if tc, err := ingest.NewTikTokenCounter(ingest.DefaultEncoding); err != nil {
		logger.Warn("token counting disabled", zap.Error(err))
	} else {
		procOpts = append(procOpts, ingest.WithTokenCounter(tc))
	}

	// =========
	// Crawl ledger
	// =========
	ledger, err := crawler.OpenLedger(cfg.CrawlStatePath)
	if err != nil {
		logger.Fatal("failed to open crawl ledger", zap.Error(err))
	}
	defer ledger.Close()
	if err := ledger.ResetVisited(); err != nil {
		logger.Fatal("failed to reset crawl ledger", zap.Error(err))
	}

	// =========
	// Fetcher
	// =========
	var fetcher crawler.Fetcher
	switch cfg.CrawlFetcher {
	case config.FetcherBrowser:
		bf, err := crawler.NewBrowserFetcher(ctx, crawlCfg, logger)
		if err != nil {
			logger.Fatal("failed to start browser", zap.Error(err))
		}
		defer bf.Close()
		fetcher = bf
	default:
		cf, err := crawler.NewCollyFetcher(crawlCfg, ledger, logger)
		if err != nil {
			logger.Fatal("failed to create fetcher", zap.Error(err))
		}
		fetcher = cf
	}
	extractor := crawler.NewExtractor(logger)

	// =========
	// Crawl
	// =========
	var total crawler.Stats
	for name, urls := range urlsBySource {
		opts := append([]ingest.Option{ingest.WithSource(name)}, procOpts...)
		processor := ingest.NewProcessor(splitter, embedder, store, logger, opts...)
		c := crawler.NewCrawler(crawlCfg, fetcher, extractor, processor, ledger, logger)

		stats, err := c.CrawlParallel(ctx, urls)
		total.Succeeded += stats.Succeeded
		total.Failed += stats.Failed
		total.Skipped += stats.Skipped
		if err != nil {
			logger.Warn("crawl interrupted", zap.String("source", name), zap.Error(err))
			break
		}
	}

	logger.Info("ingestion finished",
		zap.Int("succeeded", total.Succeeded),
		zap.Int("failed", total.Failed),
		zap.Int("skipped", total.Skipped))
}
