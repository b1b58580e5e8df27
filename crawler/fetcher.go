package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/storage"
	"go.uber.org/zap"
)

var ErrAlreadyCrawled = errors.New("already crawled")

// Page is a fetched HTML document.
type Page struct {
	URL        string
	StatusCode int
	HTML       []byte
	FetchedAt  time.Time
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// CollyFetcher fetches pages over plain HTTP.
type CollyFetcher struct {
	collector *colly.Collector
	logger    *zap.Logger
}

// NewCollyFetcher builds a fetcher whose visited set and cookies live in
// store when it is non-nil.
func NewCollyFetcher(cfg *CrawlerConfig, store storage.Storage, logger *zap.Logger) (*CollyFetcher, error) {
	opts := []colly.CollectorOption{
		colly.UserAgent(cfg.UserAgent),
	}
	if len(cfg.AllowedDomains) > 0 {
		opts = append(opts, colly.AllowedDomains(cfg.AllowedDomains...))
	}
	if cfg.Recrawl {
		opts = append(opts, colly.AllowURLRevisit())
	}

	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(cfg.RequestTimeout)
	if store != nil {
		if err := c.SetStorage(store); err != nil {
			return nil, fmt.Errorf("failed to attach crawl storage: %w", err)
		}
	}

	return &CollyFetcher{collector: c, logger: logger}, nil
}

func (f *CollyFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Clones share storage and the HTTP backend but not callbacks, so
	// concurrent fetches do not see each other's responses.
	c := f.collector.Clone()

	var page *Page
	c.OnResponse(func(r *colly.Response) {
		page = &Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			HTML:       r.Body,
			FetchedAt:  time.Now().UTC(),
		}
	})

	err := c.Visit(url)
	switch {
	case errors.As(err, new(*colly.AlreadyVisitedError)):
		return nil, fmt.Errorf("%s: %w", url, ErrAlreadyCrawled)
	case err != nil:
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	case page == nil:
		return nil, fmt.Errorf("fetch %s: no response", url)
	case page.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: status %d", url, page.StatusCode)
	}

	f.logger.Debug("page fetched",
		zap.String("url", page.URL),
		zap.Int("bytes", len(page.HTML)))
	return page, nil
}
