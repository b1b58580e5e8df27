package crawler

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/markusmobius/go-trafilatura"
	"go.uber.org/zap"
	nethtml "golang.org/x/net/html"
)

// Document is a page reduced to its title and markdown body.
type Document struct {
	URL      string
	Title    string
	Markdown string
	// Extractor names the strategy that produced the body.
	Extractor string
}

// noise is removed before markdown conversion. Only page-level headers and
// footers count; an article's own <header> carries its heading.
const noise = "script, style, noscript, nav, body > header, body > footer, " +
	"[role=banner], [role=contentinfo], iframe, svg, form, img, picture"

type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// ToMarkdown extracts the main content of page and renders it as markdown
// without links or images. Trafilatura is tried first, then readability,
// then the whole body.
func (x *Extractor) ToMarkdown(page *Page) (*Document, error) {
	pageURL, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", page.URL, err)
	}

	title := extractTitle(page.HTML)

	contentHTML, extractor := x.extractWithTrafilatura(page.HTML, pageURL)
	if contentHTML == "" {
		contentHTML, extractor = x.extractWithReadability(page.HTML, pageURL)
	}
	if contentHTML == "" {
		contentHTML, extractor = bodyHTML(page.HTML), "body"
	}

	md, err := HTMLToMarkdown(contentHTML)
	if err != nil {
		return nil, fmt.Errorf("convert %s to markdown: %w", page.URL, err)
	}

	x.logger.Debug("page converted",
		zap.String("url", page.URL),
		zap.String("title", title),
		zap.String("extractor", extractor),
		zap.Int("markdown_length", len(md)))

	return &Document{
		URL:       page.URL,
		Title:     title,
		Markdown:  md,
		Extractor: extractor,
	}, nil
}

func (x *Extractor) extractWithTrafilatura(body []byte, pageURL *url.URL) (string, string) {
	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL:     pageURL,
		EnableFallback:  true,
		ExcludeComments: true,
		IncludeLinks:    false,
		IncludeImages:   false,
	})
	if err != nil || result == nil || result.ContentNode == nil {
		x.logger.Debug("trafilatura: extraction failed",
			zap.String("url", pageURL.String()),
			zap.Error(err))
		return "", ""
	}
	htmlStr, err := RenderNodeToString(result.ContentNode)
	if err != nil || strings.TrimSpace(result.ContentText) == "" {
		return "", ""
	}
	return htmlStr, "trafilatura"
}

func (x *Extractor) extractWithReadability(body []byte, pageURL *url.URL) (string, string) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		x.logger.Debug("readability: extraction failed",
			zap.String("url", pageURL.String()),
			zap.Error(err))
		return "", ""
	}
	return article.Content, "readability"
}

// HTMLToMarkdown strips noise elements, unwraps links to their text and
// converts what is left to markdown.
func HTMLToMarkdown(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	doc.Find(noise).Remove()
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml(html.EscapeString(s.Text()))
	})

	cleaned, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	md, err := htmltomarkdown.ConvertString(cleaned)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

func extractTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func bodyHTML(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return string(body)
	}
	h, err := doc.Find("body").Html()
	if err != nil {
		return string(body)
	}
	return h
}

func RenderNodeToString(n *nethtml.Node) (string, error) {
	var buf bytes.Buffer
	if err := nethtml.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}
