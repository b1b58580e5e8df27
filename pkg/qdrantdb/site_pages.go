package qdrantdb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"encompass-agent/repository"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const scrollPageSize = 256

var pointNamespace = uuid.MustParse("6f1c7d0e-3b0a-4c59-9a43-1f5b2d8e7c11")

var _ repository.SitePageRepo = (*SitePagesClient)(nil)

func (c *SitePagesClient) CreateSitePagesCollection(ctx context.Context) error {
	exists, err := c.Client.CollectionExists(ctx, c.collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = c.Client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     c.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("err create site pages collection: %w", err)
	}

	for _, field := range []string{"url", "metadata.source"} {
		_, err = c.Client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: c.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("err create %s index: %w", field, err)
		}
	}
	return nil
}

// PointID derives a stable point id from the page url and chunk number, so
// re-crawling a page overwrites its previous chunks.
func PointID(url string, chunkNumber int) string {
	return uuid.NewSHA1(pointNamespace, []byte(url+"#"+strconv.Itoa(chunkNumber))).String()
}

func (c *SitePagesClient) Insert(ctx context.Context, page *repository.SitePage) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(PointID(page.URL, page.ChunkNumber)),
		Vectors: qdrant.NewVectorsDense(page.Embedding),
		Payload: qdrant.NewValueMap(toPayload(page)),
	}
	_, err := c.Client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upsert chunk %d of %s: %w", page.ChunkNumber, page.URL, err)
	}
	return nil
}

func (c *SitePagesClient) Query(ctx context.Context, embedding []float32, topK int, filter repository.Filter) ([]repository.SitePage, error) {
	points, err := c.Client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		Filter:         toFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query site pages: %w", err)
	}

	pages := make([]repository.SitePage, 0, len(points))
	for _, p := range points {
		page := fromPayload(p.GetPayload())
		page.Similarity = p.GetScore()
		pages = append(pages, page)
	}
	return pages, nil
}

func (c *SitePagesClient) ListURLs(ctx context.Context, filter repository.Filter) ([]string, error) {
	var urls []string
	err := c.scroll(ctx, toFilter(filter), qdrant.NewWithPayloadInclude("url"), func(p *qdrant.RetrievedPoint) {
		urls = append(urls, p.GetPayload()["url"].GetStringValue())
	})
	if err != nil {
		return nil, fmt.Errorf("list site page urls: %w", err)
	}
	return repository.UniqueSortedURLs(urls), nil
}

func (c *SitePagesClient) GetByURL(ctx context.Context, url string, filter repository.Filter) ([]repository.SitePage, error) {
	f := toFilter(filter)
	if f == nil {
		f = &qdrant.Filter{}
	}
	f.Must = append(f.Must, qdrant.NewMatch("url", url))

	var pages []repository.SitePage
	err := c.scroll(ctx, f, qdrant.NewWithPayload(true), func(p *qdrant.RetrievedPoint) {
		pages = append(pages, fromPayload(p.GetPayload()))
	})
	if err != nil {
		return nil, fmt.Errorf("get site pages for %s: %w", url, err)
	}
	repository.SortByChunkNumber(pages)
	return pages, nil
}

// scroll walks every point matching filter. Scroll offsets are inclusive, so
// each page after the first repeats the previous page's last point.
func (c *SitePagesClient) scroll(ctx context.Context, filter *qdrant.Filter, payload *qdrant.WithPayloadSelector, fn func(*qdrant.RetrievedPoint)) error {
	var offset *qdrant.PointId
	for {
		points, err := c.Client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: c.collection,
			Filter:         filter,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			WithPayload:    payload,
		})
		if err != nil {
			return err
		}
		for i, p := range points {
			if offset != nil && i == 0 {
				continue
			}
			fn(p)
		}
		if len(points) < scrollPageSize {
			return nil
		}
		offset = points[len(points)-1].GetId()
	}
}

func toFilter(f repository.Filter) *qdrant.Filter {
	if f.Source == "" {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("metadata.source", f.Source)},
	}
}

func toPayload(page *repository.SitePage) map[string]any {
	return map[string]any{
		"url":          page.URL,
		"chunk_number": int64(page.ChunkNumber),
		"title":        page.Title,
		"summary":      page.Summary,
		"content":      page.Content,
		"metadata": map[string]any{
			"source":      page.Metadata.Source,
			"chunk_size":  int64(page.Metadata.ChunkSize),
			"crawled_at":  page.Metadata.CrawledAt.UTC().Format(time.RFC3339),
			"url_path":    page.Metadata.URLPath,
			"token_count": int64(page.Metadata.TokenCount),
		},
	}
}

func fromPayload(payload map[string]*qdrant.Value) repository.SitePage {
	md := payload["metadata"].GetStructValue().GetFields()
	crawledAt, _ := time.Parse(time.RFC3339, md["crawled_at"].GetStringValue())
	return repository.SitePage{
		URL:         payload["url"].GetStringValue(),
		ChunkNumber: int(payload["chunk_number"].GetIntegerValue()),
		Title:       payload["title"].GetStringValue(),
		Summary:     payload["summary"].GetStringValue(),
		Content:     payload["content"].GetStringValue(),
		Metadata: repository.PageMetadata{
			Source:     md["source"].GetStringValue(),
			ChunkSize:  int(md["chunk_size"].GetIntegerValue()),
			CrawledAt:  crawledAt,
			URLPath:    md["url_path"].GetStringValue(),
			TokenCount: int(md["token_count"].GetIntegerValue()),
		},
	}
}
