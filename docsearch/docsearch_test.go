package docsearch

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"encompass-agent/pkg/memstore"
	"encompass-agent/repository"

	"go.uber.org/zap/zaptest"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return s.vec, s.err
}

func (s stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, s.err
}

func seededStore(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	pages := []repository.SitePage{
		{URL: "https://docs/pipeline", ChunkNumber: 1, Title: "Loan Pipeline - Part 2", Content: "Use terms to combine filters.", Embedding: []float32{0.8, 0.2}},
		{URL: "https://docs/pipeline", ChunkNumber: 0, Title: "Loan Pipeline - Part 1", Content: "POST a filter to the pipeline.", Embedding: []float32{1, 0}},
		{URL: "https://docs/auth", ChunkNumber: 0, Title: "Authentication", Content: "Request a token.", Embedding: []float32{0, 1}},
		{URL: "https://blog/post", ChunkNumber: 0, Title: "Blog", Content: "Unrelated.", Embedding: []float32{1, 0}},
	}
	for i := range pages {
		src := repository.DefaultSource
		if strings.HasPrefix(pages[i].URL, "https://blog") {
			src = "blog"
		}
		pages[i].Metadata.Source = src
		if err := s.Insert(context.Background(), &pages[i]); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	return s
}

func TestRetrieveRelevant(t *testing.T) {
	svc := NewService(seededStore(t), stubEmbedder{vec: []float32{1, 0}}, "", zaptest.NewLogger(t))
	svc.topK = 2

	got, err := svc.RetrieveRelevant(context.Background(), "how do I filter loans")
	if err != nil {
		t.Fatalf("RetrieveRelevant() error = %v", err)
	}
	want := "\n# Loan Pipeline - Part 1\n\nPOST a filter to the pipeline.\n" +
		"\n\n---\n\n" +
		"\n# Loan Pipeline - Part 2\n\nUse terms to combine filters.\n"
	if got != want {
		t.Errorf("RetrieveRelevant() = %q, want %q", got, want)
	}
}

func TestRetrieveRelevantEmpty(t *testing.T) {
	svc := NewService(memstore.New(), stubEmbedder{vec: []float32{1, 0}}, "", zaptest.NewLogger(t))
	got, err := svc.RetrieveRelevant(context.Background(), "anything")
	if err != nil || got != NoResultsMessage {
		t.Errorf("RetrieveRelevant() = %q, %v", got, err)
	}
}

func TestRetrieveRelevantEmbedFailure(t *testing.T) {
	svc := NewService(seededStore(t), stubEmbedder{err: errors.New("no quota")}, "", zaptest.NewLogger(t))
	if _, err := svc.RetrieveRelevant(context.Background(), "anything"); err == nil {
		t.Error("RetrieveRelevant() error = nil, want embed failure")
	}
}

func TestListPages(t *testing.T) {
	svc := NewService(seededStore(t), stubEmbedder{}, "", zaptest.NewLogger(t))
	got, err := svc.ListPages(context.Background())
	if err != nil {
		t.Fatalf("ListPages() error = %v", err)
	}
	want := []string{"https://docs/auth", "https://docs/pipeline"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListPages() = %v, want %v", got, want)
	}
}

func TestPageContent(t *testing.T) {
	svc := NewService(seededStore(t), stubEmbedder{}, "", zaptest.NewLogger(t))

	got, err := svc.PageContent(context.Background(), "https://docs/pipeline")
	if err != nil {
		t.Fatalf("PageContent() error = %v", err)
	}
	want := "# Loan Pipeline\n\n\nPOST a filter to the pipeline.\n\nUse terms to combine filters."
	if got != want {
		t.Errorf("PageContent() = %q, want %q", got, want)
	}

	missing, _ := svc.PageContent(context.Background(), "https://docs/missing")
	if missing != "No content found for URL: https://docs/missing" {
		t.Errorf("PageContent(missing) = %q", missing)
	}
}
