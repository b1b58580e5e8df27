// Package memstore keeps site pages in process memory. It backs dry runs
// and tests that must not depend on a database.
package memstore

import (
	"context"
	"sort"
	"sync"

	"encompass-agent/pkg/embedding"
	"encompass-agent/repository"
)

type pageKey struct {
	url   string
	chunk int
}

type Store struct {
	mu    sync.RWMutex
	pages map[pageKey]repository.SitePage
}

var _ repository.SitePageRepo = (*Store)(nil)

func New() *Store {
	return &Store{pages: make(map[pageKey]repository.SitePage)}
}

func (s *Store) Insert(_ context.Context, page *repository.SitePage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := *page
	p.Embedding = append([]float32(nil), page.Embedding...)
	s.pages[pageKey{url: p.URL, chunk: p.ChunkNumber}] = p
	return nil
}

func (s *Store) Query(_ context.Context, vec []float32, topK int, filter repository.Filter) ([]repository.SitePage, error) {
	s.mu.RLock()
	matches := make([]repository.SitePage, 0, len(s.pages))
	for _, p := range s.pages {
		if !filter.Matches(&p) {
			continue
		}
		p.Similarity = embedding.CosineSimilarity(vec, p.Embedding)
		matches = append(matches, p)
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		if matches[i].URL != matches[j].URL {
			return matches[i].URL < matches[j].URL
		}
		return matches[i].ChunkNumber < matches[j].ChunkNumber
	})
	if topK >= 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Store) ListURLs(_ context.Context, filter repository.Filter) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	urls := make([]string, 0, len(s.pages))
	for _, p := range s.pages {
		if filter.Matches(&p) {
			urls = append(urls, p.URL)
		}
	}
	return repository.UniqueSortedURLs(urls), nil
}

func (s *Store) GetByURL(_ context.Context, url string, filter repository.Filter) ([]repository.SitePage, error) {
	s.mu.RLock()
	var pages []repository.SitePage
	for k, p := range s.pages {
		if k.url == url && filter.Matches(&p) {
			pages = append(pages, p)
		}
	}
	s.mu.RUnlock()

	repository.SortByChunkNumber(pages)
	return pages, nil
}

// Len reports how many chunks are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}
