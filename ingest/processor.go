package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"encompass-agent/pkg/chunking"
	"encompass-agent/pkg/embedding"
	"encompass-agent/repository"

	"go.uber.org/zap"
)

// Processor turns a page of markdown into stored, embedded chunks.
type Processor struct {
	splitter chunking.Splitter
	embedder embedding.Embedder
	repo     repository.SitePageRepo
	tokens   TokenCounter
	source   string
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Processor)

// WithTokenCounter adds a token_count to every record's metadata.
func WithTokenCounter(tc TokenCounter) Option {
	return func(p *Processor) { p.tokens = tc }
}

func WithSource(source string) Option {
	return func(p *Processor) { p.source = source }
}

// NewProcessor expects embedder to already degrade failures to zero
// vectors (see embedding.Fallback); any error it still returns fails the
// page.
func NewProcessor(splitter chunking.Splitter, embedder embedding.Embedder, repo repository.SitePageRepo, logger *zap.Logger, opts ...Option) *Processor {
	p := &Processor{
		splitter: splitter,
		embedder: embedder,
		repo:     repo,
		source:   repository.DefaultSource,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessAndStore chunks markdown, builds every chunk's record concurrently,
// then inserts them concurrently. Insert failures are logged and skipped.
// It returns the number of chunks inserted.
func (p *Processor) ProcessAndStore(ctx context.Context, pageURL, markdown string) (int, error) {
	chunks, err := p.splitter.Split(markdown)
	if err != nil {
		return 0, fmt.Errorf("chunk %s: %w", pageURL, err)
	}
	if len(chunks) == 0 {
		p.logger.Info("no content to store", zap.String("url", pageURL))
		return 0, nil
	}

	records, err := p.processChunks(ctx, pageURL, chunks)
	if err != nil {
		return 0, err
	}

	var (
		wg       sync.WaitGroup
		inserted atomic.Int64
	)
	for _, rec := range records {
		wg.Add(1)
		go func(rec *repository.SitePage) {
			defer wg.Done()
			if err := p.repo.Insert(ctx, rec); err != nil {
				p.logger.Error("failed to insert chunk",
					zap.String("url", rec.URL),
					zap.Int("chunk_number", rec.ChunkNumber),
					zap.Error(err))
				return
			}
			inserted.Add(1)
		}(rec)
	}
	wg.Wait()

	p.logger.Info("stored document",
		zap.String("url", pageURL),
		zap.Int("chunks", len(records)),
		zap.Int64("inserted", inserted.Load()))
	return int(inserted.Load()), nil
}

func (p *Processor) processChunks(ctx context.Context, pageURL string, chunks []chunking.Chunk) ([]*repository.SitePage, error) {
	crawledAt := p.now()
	records := make([]*repository.SitePage, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, ch := range chunks {
		wg.Add(1)
		go func(i int, ch chunking.Chunk) {
			defer wg.Done()
			vec, err := p.embedder.EmbedQuery(ctx, ch.Text)
			if err != nil {
				errs[i] = fmt.Errorf("embed chunk %d of %s: %w", ch.SequenceNumber, pageURL, err)
				return
			}
			rec := BuildRecord(pageURL, ch.SequenceNumber, ch.Text, vec, p.source, crawledAt)
			if p.tokens != nil {
				rec.Metadata.TokenCount = p.tokens.Count(ch.Text)
			}
			records[i] = rec
		}(i, ch)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}
