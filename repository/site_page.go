package repository

import (
	"context"
	"sort"
	"time"
)

// DefaultSource tags every chunk crawled from the developer documentation.
const DefaultSource = "encompass_devconnect_docs"

type SitePageRepo interface {
	Insert(ctx context.Context, page *SitePage) error
	// Query returns up to topK pages ordered by descending similarity.
	Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]SitePage, error)
	ListURLs(ctx context.Context, filter Filter) ([]string, error)
	// GetByURL returns the chunks of one page ordered by chunk number.
	GetByURL(ctx context.Context, url string, filter Filter) ([]SitePage, error)
}

// SitePage is one stored chunk of a crawled page.
type SitePage struct {
	URL         string       `json:"url"`
	ChunkNumber int          `json:"chunk_number"`
	Title       string       `json:"title"`
	Summary     string       `json:"summary"`
	Content     string       `json:"content"`
	Metadata    PageMetadata `json:"metadata"`
	Embedding   []float32    `json:"embedding,omitempty"`
	// Similarity is only set on Query results.
	Similarity float32 `json:"similarity,omitempty"`
}

type PageMetadata struct {
	Source     string    `json:"source"`
	ChunkSize  int       `json:"chunk_size"`
	CrawledAt  time.Time `json:"crawled_at"`
	URLPath    string    `json:"url_path"`
	TokenCount int       `json:"token_count,omitempty"`
}

// Filter narrows a lookup by metadata. Zero value matches everything.
type Filter struct {
	Source string `json:"source,omitempty"`
}

func (f Filter) Matches(p *SitePage) bool {
	return f.Source == "" || p.Metadata.Source == f.Source
}

func SortByChunkNumber(pages []SitePage) {
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].ChunkNumber < pages[j].ChunkNumber
	})
}

// UniqueSortedURLs deduplicates urls and sorts them.
func UniqueSortedURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
