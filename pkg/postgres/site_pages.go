package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"encompass-agent/repository"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

var _ repository.SitePageRepo = (*PostgresClient)(nil)

func (c *PostgresClient) Insert(ctx context.Context, page *repository.SitePage) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (url, chunk_number, title, summary, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6::text::jsonb, $7)
		ON CONFLICT (url, chunk_number) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`, c.table)

	metadata, err := json.Marshal(page.Metadata)
	if err != nil {
		return fmt.Errorf("unable to encode metadata: %w", err)
	}

	_, err = c.pool.Exec(ctx, query,
		page.URL,
		page.ChunkNumber,
		page.Title,
		page.Summary,
		page.Content,
		string(metadata),
		pgvector.NewVector(page.Embedding),
	)
	if err != nil {
		return fmt.Errorf("unable to insert chunk %d of %s: %w", page.ChunkNumber, page.URL, err)
	}
	return nil
}

func (c *PostgresClient) Query(ctx context.Context, embedding []float32, topK int, filter repository.Filter) ([]repository.SitePage, error) {
	query := fmt.Sprintf(`
		SELECT url, chunk_number, title, summary, content, metadata::text,
			1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE metadata @> $2::text::jsonb
		ORDER BY embedding <=> $1
		LIMIT $3
	`, c.table)

	rows, err := c.pool.Query(ctx, query, pgvector.NewVector(embedding), filterJSON(filter), topK)
	if err != nil {
		return nil, fmt.Errorf("unable to query site pages: %w", err)
	}
	return collectPages(rows, true)
}

func (c *PostgresClient) ListURLs(ctx context.Context, filter repository.Filter) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT url FROM %s
		WHERE metadata @> $1::text::jsonb
		ORDER BY url
	`, c.table)

	rows, err := c.pool.Query(ctx, query, filterJSON(filter))
	if err != nil {
		return nil, fmt.Errorf("unable to list urls: %w", err)
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("unable to scan urls: %w", err)
	}
	return urls, nil
}

func (c *PostgresClient) GetByURL(ctx context.Context, url string, filter repository.Filter) ([]repository.SitePage, error) {
	query := fmt.Sprintf(`
		SELECT url, chunk_number, title, summary, content, metadata::text
		FROM %s
		WHERE url = $1 AND metadata @> $2::text::jsonb
		ORDER BY chunk_number
	`, c.table)

	rows, err := c.pool.Query(ctx, query, url, filterJSON(filter))
	if err != nil {
		return nil, fmt.Errorf("unable to get pages for %s: %w", url, err)
	}
	return collectPages(rows, false)
}

func collectPages(rows pgx.Rows, withSimilarity bool) ([]repository.SitePage, error) {
	defer rows.Close()

	var pages []repository.SitePage
	for rows.Next() {
		var (
			p        repository.SitePage
			metadata string
		)
		dest := []any{&p.URL, &p.ChunkNumber, &p.Title, &p.Summary, &p.Content, &metadata}
		if withSimilarity {
			var similarity float64
			dest = append(dest, &similarity)
			if err := rows.Scan(dest...); err != nil {
				return nil, fmt.Errorf("unable to scan page: %w", err)
			}
			p.Similarity = float32(similarity)
		} else if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("unable to scan page: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &p.Metadata); err != nil {
			return nil, fmt.Errorf("unable to decode metadata: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return pages, nil
}

// filterJSON renders f as a jsonb containment document.
func filterJSON(f repository.Filter) string {
	b, _ := json.Marshal(f)
	return string(b)
}
