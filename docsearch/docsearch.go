// Package docsearch answers documentation questions from the crawled site
// pages: similarity search, page listing and full page reassembly.
package docsearch

import (
	"context"
	"fmt"
	"strings"

	"encompass-agent/pkg/embedding"
	"encompass-agent/repository"

	"go.uber.org/zap"
)

const (
	DefaultTopK = 5

	NoResultsMessage = "No relevant documentation found."
	chunkSeparator   = "\n\n---\n\n"
)

type Service struct {
	repo     repository.SitePageRepo
	embedder embedding.Embedder
	filter   repository.Filter
	topK     int
	logger   *zap.Logger
}

func NewService(repo repository.SitePageRepo, embedder embedding.Embedder, source string, logger *zap.Logger) *Service {
	if source == "" {
		source = repository.DefaultSource
	}
	return &Service{
		repo:     repo,
		embedder: embedder,
		filter:   repository.Filter{Source: source},
		topK:     DefaultTopK,
		logger:   logger,
	}
}

// RetrieveRelevant returns the chunks closest to query, formatted as
// markdown sections separated by horizontal rules.
func (s *Service) RetrieveRelevant(ctx context.Context, query string) (string, error) {
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	pages, err := s.repo.Query(ctx, vec, s.topK, s.filter)
	if err != nil {
		return "", fmt.Errorf("search documentation: %w", err)
	}
	s.logger.Debug("documentation search",
		zap.String("query", query),
		zap.Int("results", len(pages)))

	if len(pages) == 0 {
		return NoResultsMessage, nil
	}

	formatted := make([]string, len(pages))
	for i, p := range pages {
		formatted[i] = fmt.Sprintf("\n# %s\n\n%s\n", p.Title, p.Content)
	}
	return strings.Join(formatted, chunkSeparator), nil
}

// ListPages returns every documentation url, sorted.
func (s *Service) ListPages(ctx context.Context) ([]string, error) {
	urls, err := s.repo.ListURLs(ctx, s.filter)
	if err != nil {
		return nil, fmt.Errorf("list documentation pages: %w", err)
	}
	return urls, nil
}

// PageContent reassembles a page from its chunks in order, headed by the
// page title.
func (s *Service) PageContent(ctx context.Context, url string) (string, error) {
	pages, err := s.repo.GetByURL(ctx, url, s.filter)
	if err != nil {
		return "", fmt.Errorf("get page content: %w", err)
	}
	if len(pages) == 0 {
		return "No content found for URL: " + url, nil
	}

	title, _, _ := strings.Cut(pages[0].Title, " - ")
	parts := make([]string, 0, len(pages)+1)
	parts = append(parts, fmt.Sprintf("# %s\n", title))
	for _, p := range pages {
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}
