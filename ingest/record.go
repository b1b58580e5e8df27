package ingest

import (
	"fmt"
	"net/url"
	"time"
	"unicode/utf8"

	"encompass-agent/repository"
)

// BuildRecord assembles the stored form of one chunk.
func BuildRecord(pageURL string, chunkNumber int, content string, vector []float32, source string, crawledAt time.Time) *repository.SitePage {
	urlPath := ""
	if u, err := url.Parse(pageURL); err == nil {
		urlPath = u.Path
	}
	return &repository.SitePage{
		URL:         pageURL,
		ChunkNumber: chunkNumber,
		Title:       fmt.Sprintf("Chunk %d from %s", chunkNumber, pageURL),
		Summary:     fmt.Sprintf("This is a processed chunk %d from the document at %s.", chunkNumber, pageURL),
		Content:     content,
		Metadata: repository.PageMetadata{
			Source:    source,
			ChunkSize: utf8.RuneCountInString(content),
			CrawledAt: crawledAt.UTC(),
			URLPath:   urlPath,
		},
		Embedding: vector,
	}
}
