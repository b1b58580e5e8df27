package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"unicode"

	"github.com/gocolly/colly/v2"
	"github.com/kljensen/snowball"
	"go.uber.org/zap"
)

// SitemapReader lists the page urls a sitemap advertises, following nested
// sitemap indexes.
type SitemapReader struct {
	userAgent string
	logger    *zap.Logger
}

func NewSitemapReader(cfg *CrawlerConfig, logger *zap.Logger) *SitemapReader {
	return &SitemapReader{userAgent: cfg.UserAgent, logger: logger}
}

func (s *SitemapReader) Read(ctx context.Context, sitemapURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(colly.UserAgent(s.userAgent))

	var (
		mu   sync.Mutex
		urls []string
	)
	c.OnXML("//urlset/url/loc", func(e *colly.XMLElement) {
		mu.Lock()
		urls = append(urls, strings.TrimSpace(e.Text))
		mu.Unlock()
	})
	c.OnXML("//sitemapindex/sitemap/loc", func(e *colly.XMLElement) {
		if ctx.Err() != nil {
			return
		}
		nested := strings.TrimSpace(e.Text)
		if err := e.Request.Visit(nested); err != nil {
			s.logger.Warn("failed to read nested sitemap",
				zap.String("sitemap", nested),
				zap.Error(err))
		}
	})

	if err := c.Visit(sitemapURL); err != nil {
		return nil, fmt.Errorf("read sitemap %s: %w", sitemapURL, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Info("sitemap read",
		zap.String("sitemap", sitemapURL),
		zap.Int("urls", len(urls)))
	return urls, nil
}

// FilterByTopics keeps the urls whose path mentions at least one topic,
// comparing stems so "loans" matches "loan". No topics keeps everything.
func FilterByTopics(urls, topics []string) []string {
	if len(topics) == 0 {
		return urls
	}
	var kept []string
	for _, u := range urls {
		words := pathWords(u)
		for _, topic := range topics {
			if isTopicRelevant(words, strings.ToLower(topic)) {
				kept = append(kept, u)
				break
			}
		}
	}
	return kept
}

func pathWords(rawURL string) string {
	p := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		p = parsed.Path
	}
	return strings.Join(strings.FieldsFunc(p, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

func stemWord(word string) string {
	stem, err := snowball.Stem(word, "english", true)
	if err != nil {
		return word
	}
	return stem
}

func isTopicRelevant(text, topic string) bool {
	text = strings.ToLower(text)
	topicStem := stemWord(topic)

	// stems must share at least this many leading characters
	minPrefixLen := min(4, len(topicStem))

	if len(topic) >= 3 && !strings.Contains(text, topic[:3]) {
		return false
	}

	for _, w := range strings.Fields(text) {
		if len(topic) >= 3 && !strings.Contains(w, topic[:3]) {
			continue
		}
		stem := stemWord(w)

		compareLen := min(minPrefixLen, len(stem), len(topicStem))
		if compareLen > 0 && compareLen >= minPrefixLen && stem[:compareLen] == topicStem[:compareLen] {
			return true
		}
	}
	return false
}
