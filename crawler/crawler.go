package crawler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DocumentProcessor chunks, embeds and stores one page of markdown and
// reports how many chunks it produced.
type DocumentProcessor interface {
	ProcessAndStore(ctx context.Context, url, markdown string) (int, error)
}

// Ledger remembers which pages were already ingested.
type Ledger interface {
	Ingested(url string) (*LedgerEntry, bool, error)
	MarkIngested(url string, chunks int) error
}

type Stats struct {
	Succeeded int
	Failed    int
	Skipped   int
}

type Crawler struct {
	cfg       *CrawlerConfig
	fetcher   Fetcher
	extractor *Extractor
	processor DocumentProcessor
	ledger    Ledger
	logger    *zap.Logger
}

// NewCrawler wires the crawl pipeline. ledger may be nil.
func NewCrawler(cfg *CrawlerConfig, fetcher Fetcher, extractor *Extractor, processor DocumentProcessor, ledger Ledger, logger *zap.Logger) *Crawler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Crawler{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		processor: processor,
		ledger:    ledger,
		logger:    logger,
	}
}

// CrawlParallel fetches, converts and ingests urls with at most
// MaxConcurrent pages in flight. A failing page never stops the others.
// Cancelling ctx stops new pages from starting; pages already running
// finish.
func (w *Crawler) CrawlParallel(ctx context.Context, urls []string) (Stats, error) {
	sem := semaphore.NewWeighted(int64(w.cfg.MaxConcurrent))
	crawlID := GenerateContextID("crawl")

	var (
		wg                         sync.WaitGroup
		succeeded, failed, skipped atomic.Int64
		acquireErr                 error
	)

	for i, u := range urls {
		err := ctx.Err()
		if err == nil {
			err = sem.Acquire(ctx, 1)
		}
		if err != nil {
			acquireErr = err
			skipped.Add(int64(len(urls) - i))
			break
		}
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			defer sem.Release(1)

			// detached so one page finishes even after cancellation
			pageCtx := WithURL(WithContextID(context.WithoutCancel(ctx), crawlID), u)
			switch err := w.crawlOne(pageCtx, u); {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrAlreadyCrawled):
				skipped.Add(1)
			default:
				failed.Add(1)
			}
		}(u)
	}
	wg.Wait()

	stats := Stats{
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}
	w.logger.Info("crawl finished",
		zap.String("context_id", crawlID),
		zap.Int("urls", len(urls)),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped))
	return stats, acquireErr
}

func (w *Crawler) crawlOne(ctx context.Context, url string) error {
	logger := GetContextLogger(ctx, w.logger)

	if w.ledger != nil && !w.cfg.Recrawl {
		entry, ok, err := w.ledger.Ingested(url)
		if err != nil {
			logger.Warn("ledger lookup failed", zap.Error(err))
		} else if ok {
			logger.Debug("skipping ingested page", zap.Time("ingested_at", entry.IngestedAt))
			return ErrAlreadyCrawled
		}
	}

	page, err := w.fetcher.Fetch(ctx, url)
	if errors.Is(err, ErrAlreadyCrawled) {
		logger.Debug("skipping visited page")
		return err
	}
	if err != nil {
		logger.Error("failed to fetch page", zap.Error(err))
		return err
	}

	doc, err := w.extractor.ToMarkdown(page)
	if err != nil {
		logger.Error("failed to convert page", zap.Error(err))
		return err
	}

	chunks, err := w.processor.ProcessAndStore(ctx, url, doc.Markdown)
	if err != nil {
		logger.Error("failed to process page", zap.Error(err))
		return err
	}

	if w.ledger != nil {
		if err := w.ledger.MarkIngested(url, chunks); err != nil {
			logger.Warn("failed to update ledger", zap.Error(err))
		}
	}
	logger.Info("page ingested",
		zap.String("title", doc.Title),
		zap.Int("chunks", chunks))
	return nil
}
