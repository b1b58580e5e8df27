package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// BrowserFetcher renders pages in headless Chrome, for documentation sites
// that build their content with JavaScript. Each fetch opens a tab in one
// shared browser.
type BrowserFetcher struct {
	logger     *zap.Logger
	timeout    time.Duration
	browserCtx context.Context
	cancel     context.CancelFunc
}

func NewBrowserFetcher(ctx context.Context, cfg *CrawlerConfig, logger *zap.Logger) (*BrowserFetcher, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// start the browser now so tabs share it
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &BrowserFetcher{
		logger:     logger,
		timeout:    cfg.RequestTimeout,
		browserCtx: browserCtx,
		cancel:     cancel,
	}, nil
}

func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	defer tabCancel()
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, b.timeout)
	defer timeoutCancel()

	// stop the tab when the caller gives up
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	resp, err := chromedp.RunResponse(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
		chromedp.Navigate(url),
	)
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}

	var currentURL, html string
	err = chromedp.Run(tabCtx,
		chromedp.WaitReady("body"),
		chromedp.Location(&currentURL),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("read page %s: %w", url, err)
	}

	status := 0
	if resp != nil {
		status = int(resp.Status)
	}
	if status >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", url, status)
	}

	b.logger.Debug("page rendered",
		zap.String("url", currentURL),
		zap.Int("status", status),
		zap.Int("dom_length", len(html)))

	return &Page{
		URL:        currentURL,
		StatusCode: status,
		HTML:       []byte(html),
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func (b *BrowserFetcher) Close() {
	b.cancel()
}
