package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DefaultTable = "site_pages"

type PostgresClient struct {
	pool      *pgxpool.Pool
	table     string
	dimension int
}

func NewClient(ctx context.Context, dbUrl, table string, dimension int) (*PostgresClient, error) {
	pool, err := pgxpool.New(ctx, dbUrl)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if table == "" {
		table = DefaultTable
	}
	return &PostgresClient{
		pool:      pool,
		table:     pgx.Identifier{table}.Sanitize(),
		dimension: dimension,
	}, nil
}

func (c *PostgresClient) Close() {
	c.pool.Close()
}

// EnsureSchema creates the pgvector extension, the pages table and its
// indexes when they are missing.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id           BIGSERIAL PRIMARY KEY,
			url          VARCHAR NOT NULL,
			chunk_number INTEGER NOT NULL,
			title        VARCHAR NOT NULL,
			summary      VARCHAR NOT NULL,
			content      TEXT NOT NULL,
			metadata     JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding    VECTOR(%d),
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (url, chunk_number)
		)`, c.table, c.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING gin (metadata)`,
			pgx.Identifier{indexName(c.table, "metadata")}.Sanitize(), c.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pgx.Identifier{indexName(c.table, "embedding")}.Sanitize(), c.table),
	}
	for _, stmt := range stmts {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("unable to apply schema: %w", err)
		}
	}
	return nil
}

func indexName(sanitizedTable, column string) string {
	name := sanitizedTable
	if len(name) >= 2 && name[0] == '"' {
		name = name[1 : len(name)-1]
	}
	return name + "_" + column + "_idx"
}
