// Package postgres provides a PostgreSQL-backed implementation of the
// semantic note index using the pgvector extension.
//
// The pgvector extension must be available in the target database; [Open]
// installs it automatically via CREATE EXTENSION IF NOT EXISTS.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/voxvault/voxvault/internal/semindex"
)

// DefaultDimensions is used when no embedding dimension is configured.
// It matches OpenAI text-embedding-3-small.
const DefaultDimensions = 1536

// Index is the pgvector-backed implementation of [semindex.Index].
// All methods are safe for concurrent use.
type Index struct {
	pool *pgxpool.Pool
}

var _ semindex.Index = (*Index)(nil)

// ddlNotes returns the notes DDL with the embedding dimension substituted.
// The vector dimension is baked into the column type at schema creation time.
func ddlNotes(dimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS notes (
    path        TEXT         PRIMARY KEY,
    title       TEXT         NOT NULL DEFAULT '',
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_notes_embedding
    ON notes USING hnsw (embedding vector_cosine_ops);
`, dimensions)
}

// Open connects to the database and ensures the schema exists. dimensions
// must match the configured embeddings model; zero applies
// [DefaultDimensions]. Changing the dimension after the first migration
// requires a manual schema update.
func Open(ctx context.Context, dsn string, dimensions int) (*Index, error) {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlNotes(dimensions)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return &Index{pool: pool}, nil
}

// Add upserts a note entry. An entry with the same path is completely
// replaced.
func (idx *Index) Add(ctx context.Context, entry semindex.Entry) error {
	const q = `
		INSERT INTO notes (path, title, embedding, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (path) DO UPDATE SET
		    title      = EXCLUDED.title,
		    embedding  = EXCLUDED.embedding,
		    created_at = EXCLUDED.created_at`

	_, err := idx.pool.Exec(ctx, q,
		entry.Path,
		entry.Title,
		pgvector.NewVector(entry.Embedding),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: index note: %w", err)
	}
	return nil
}

// Search finds the topK notes whose embeddings are closest (cosine distance)
// to the query embedding and whose similarity clears minSimilarity. Results
// are ordered most similar first.
func (idx *Index) Search(ctx context.Context, embedding []float32, topK int, minSimilarity float64) ([]semindex.Result, error) {
	if topK <= 0 {
		return nil, nil
	}

	const q = `
		SELECT path, title, embedding, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM   notes
		WHERE  1 - (embedding <=> $1) >= $2
		ORDER  BY embedding <=> $1
		LIMIT  $3`

	rows, err := idx.pool.Query(ctx, q, pgvector.NewVector(embedding), minSimilarity, topK)
	if err != nil {
		return nil, fmt.Errorf("postgres: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (semindex.Result, error) {
		var (
			r   semindex.Result
			vec pgvector.Vector
		)
		if err := row.Scan(&r.Path, &r.Title, &vec, &r.CreatedAt, &r.Similarity); err != nil {
			return semindex.Result{}, err
		}
		r.Embedding = vec.Slice()
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan rows: %w", err)
	}
	return results, nil
}

// Ping verifies the database connection. Readiness checks call it so a dead
// database surfaces on /readyz instead of as silently empty Related lists.
func (idx *Index) Ping(ctx context.Context) error {
	if err := idx.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (idx *Index) Close() error {
	idx.pool.Close()
	return nil
}
