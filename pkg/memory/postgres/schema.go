// Package postgres provides the PostgreSQL-backed implementation of
// [memory.Store], using pgvector for semantic recall.
//
// All records live in a single memories table with an HNSW cosine index over
// the embedding column. The pgvector extension must be available in the
// target database; [Migrate] installs it automatically via CREATE EXTENSION
// IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn, embedder)
//	if err != nil { … }
//	defer store.Close()
//
//	_, _ = store.AddTurn(ctx, session, "user", "what game tomorrow?")
//	results, _ := store.SearchSimilar(ctx, session, "games", 5)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlMemories returns the DDL with the embedding dimension substituted.
// The vector dimension is baked into the column type at schema creation time.
func ddlMemories(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memories (
    id          UUID         PRIMARY KEY,
    session     TEXT         NOT NULL,
    kind        TEXT         NOT NULL,
    role        TEXT         NOT NULL DEFAULT '',
    content     TEXT         NOT NULL,
    embedding   vector(%d),
    source      TEXT         NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_memories_session
    ON memories (session);

CREATE INDEX IF NOT EXISTS idx_memories_session_kind_created
    ON memories (session, kind, created_at);

CREATE INDEX IF NOT EXISTS idx_memories_embedding
    ON memories USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures the memories table, indexes, and the vector
// extension exist. It is idempotent and safe to call on every application
// start.
//
// embeddingDimensions must match the embedding model in use (e.g., 1536 for
// OpenAI text-embedding-3-small, 768 for nomic-embed-text). Changing this
// value after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddlMemories(embeddingDimensions)); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
