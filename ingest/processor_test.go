package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"encompass-agent/pkg/chunking"
	"encompass-agent/pkg/embedding"
	"encompass-agent/pkg/memstore"
	"encompass-agent/repository"

	"go.uber.org/zap/zaptest"
)

type keywordEmbedder struct{}

func (keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "poison") {
		return nil, errors.New("rate limited")
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func (e keywordEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

type flakyRepo struct {
	*memstore.Store
	failChunk int
}

func (r *flakyRepo) Insert(ctx context.Context, p *repository.SitePage) error {
	if p.ChunkNumber == r.failChunk {
		return errors.New("connection reset")
	}
	return r.Store.Insert(ctx, p)
}

func newSplitter(t *testing.T, size int) chunking.Splitter {
	t.Helper()
	s, err := chunking.NewBoundaryChunker(size)
	if err != nil {
		t.Fatalf("NewBoundaryChunker() error = %v", err)
	}
	return s
}

const markdown = "First paragraph about loans.\n\nSecond paragraph with poison.\n\nThird paragraph about fields."

func TestProcessAndStore(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store := memstore.New()
	embedder := embedding.NewFallback(keywordEmbedder{}, 3, logger)
	p := NewProcessor(newSplitter(t, 40), embedder, store, logger, WithTokenCounter(wordCounter{}))

	n, err := p.ProcessAndStore(context.Background(), "https://docs.example.com/loans/pipeline", markdown)
	if err != nil {
		t.Fatalf("ProcessAndStore() error = %v", err)
	}
	if n != 3 || store.Len() != 3 {
		t.Fatalf("inserted %d (store has %d), want 3", n, store.Len())
	}

	pages, _ := store.GetByURL(context.Background(), "https://docs.example.com/loans/pipeline", repository.Filter{Source: repository.DefaultSource})
	want := []string{"First paragraph about loans.", "Second paragraph with poison.", "Third paragraph about fields."}
	for i, pg := range pages {
		if pg.Content != want[i] {
			t.Errorf("chunk %d content = %q, want %q", i, pg.Content, want[i])
		}
		if pg.Metadata.TokenCount != 4 {
			t.Errorf("chunk %d token_count = %d, want 4", i, pg.Metadata.TokenCount)
		}
	}
	for _, v := range pages[1].Embedding {
		if v != 0 {
			t.Fatalf("failed embedding was not replaced by a zero vector: %v", pages[1].Embedding)
		}
	}
	if len(pages[1].Embedding) != 3 {
		t.Errorf("zero vector length = %d, want 3", len(pages[1].Embedding))
	}
}

func TestProcessAndStoreSkipsFailedInserts(t *testing.T) {
	logger := zaptest.NewLogger(t)
	repo := &flakyRepo{Store: memstore.New(), failChunk: 1}
	p := NewProcessor(newSplitter(t, 40), embedding.NewFallback(keywordEmbedder{}, 3, logger), repo, logger)

	n, err := p.ProcessAndStore(context.Background(), "https://docs.example.com/a", markdown)
	if err != nil {
		t.Fatalf("ProcessAndStore() error = %v", err)
	}
	if n != 2 {
		t.Errorf("inserted %d, want 2", n)
	}
	pages, _ := repo.GetByURL(context.Background(), "https://docs.example.com/a", repository.Filter{})
	if len(pages) != 2 || pages[0].ChunkNumber != 0 || pages[1].ChunkNumber != 2 {
		t.Errorf("stored chunks = %+v, want 0 and 2", pages)
	}
}

func TestProcessAndStoreEmptyDocument(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store := memstore.New()
	p := NewProcessor(newSplitter(t, 40), keywordEmbedder{}, store, logger)

	n, err := p.ProcessAndStore(context.Background(), "https://docs.example.com/empty", "  \n\n ")
	if err != nil || n != 0 || store.Len() != 0 {
		t.Errorf("ProcessAndStore(empty) = %d, %v; store has %d", n, err, store.Len())
	}
}

func TestProcessAndStoreWithoutFallbackFails(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store := memstore.New()
	p := NewProcessor(newSplitter(t, 40), keywordEmbedder{}, store, logger)

	if _, err := p.ProcessAndStore(context.Background(), "https://docs.example.com/a", markdown); err == nil {
		t.Fatal("ProcessAndStore() error = nil, want embedding error")
	}
	if store.Len() != 0 {
		t.Errorf("store has %d chunks after a failed page", store.Len())
	}
}

func TestBuildRecord(t *testing.T) {
	crawledAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("EST", -5*3600))
	rec := BuildRecord("https://developer.example.com/encompass/v1/loanPipeline?x=1", 2, "héllo", []float32{1}, repository.DefaultSource, crawledAt)

	if rec.Title != "Chunk 2 from https://developer.example.com/encompass/v1/loanPipeline?x=1" {
		t.Errorf("Title = %q", rec.Title)
	}
	if rec.Summary != "This is a processed chunk 2 from the document at https://developer.example.com/encompass/v1/loanPipeline?x=1." {
		t.Errorf("Summary = %q", rec.Summary)
	}
	if rec.Metadata.URLPath != "/encompass/v1/loanPipeline" {
		t.Errorf("URLPath = %q", rec.Metadata.URLPath)
	}
	if rec.Metadata.ChunkSize != 5 {
		t.Errorf("ChunkSize = %d, want 5", rec.Metadata.ChunkSize)
	}
	if rec.Metadata.CrawledAt.Location() != time.UTC || !rec.Metadata.CrawledAt.Equal(crawledAt) {
		t.Errorf("CrawledAt = %v", rec.Metadata.CrawledAt)
	}
	if rec.Metadata.Source != repository.DefaultSource {
		t.Errorf("Source = %q", rec.Metadata.Source)
	}
}
