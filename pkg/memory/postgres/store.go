package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/mumeinosato/kira-ai/pkg/memory"
	"github.com/mumeinosato/kira-ai/pkg/provider/embeddings"
)

// Compile-time interface check.
var _ memory.Store = (*Store)(nil)

// Store is the PostgreSQL-backed memory store. It holds a single
// [pgxpool.Pool] and an embeddings provider used to vectorise content on
// write and queries on recall.
//
// All operations are safe for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
}

// New creates a new Store, establishes a connection pool to the PostgreSQL
// database at dsn, registers pgvector types on every connection, and runs
// [Migrate] with the embedder's dimension to ensure the schema exists.
func New(ctx context.Context, dsn string, embedder embeddings.Provider) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("postgres store: embedder must not be nil")
	}
	dims := embedder.Dimensions()
	if dims <= 0 {
		return nil, fmt.Errorf("postgres store: embedder %q reports no dimensions", embedder.ModelID())
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, dims); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool, embedder: embedder}, nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies the database connection. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// AddTurn implements memory.Store.
func (s *Store) AddTurn(ctx context.Context, session, role, content string) (memory.Record, error) {
	return s.insert(ctx, memory.Record{
		Session: session,
		Kind:    memory.KindTurn,
		Role:    role,
		Content: content,
	})
}

// AddSummary implements memory.Store.
func (s *Store) AddSummary(ctx context.Context, session, content string) (memory.Record, error) {
	return s.insert(ctx, memory.Record{
		Session: session,
		Kind:    memory.KindSummary,
		Content: content,
	})
}

// AddKnowledge implements memory.Store.
func (s *Store) AddKnowledge(ctx context.Context, session, content, source string) (memory.Record, error) {
	return s.insert(ctx, memory.Record{
		Session: session,
		Kind:    memory.KindKnowledge,
		Content: content,
		Source:  source,
	})
}

// insert embeds the record content and writes one row.
func (s *Store) insert(ctx context.Context, rec memory.Record) (memory.Record, error) {
	if rec.Content == "" {
		return memory.Record{}, fmt.Errorf("postgres store: content must not be empty")
	}

	vec, err := s.embedder.Embed(ctx, rec.Content)
	if err != nil {
		return memory.Record{}, fmt.Errorf("postgres store: embed: %w", err)
	}

	rec.ID = uuid.NewString()
	rec.Embedding = vec
	rec.CreatedAt = time.Now().UTC()

	const q = `
		INSERT INTO memories (id, session, kind, role, content, embedding, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.pool.Exec(ctx, q,
		rec.ID,
		rec.Session,
		string(rec.Kind),
		rec.Role,
		rec.Content,
		pgvector.NewVector(vec),
		rec.Source,
		rec.CreatedAt,
	)
	if err != nil {
		return memory.Record{}, fmt.Errorf("postgres store: insert %s: %w", rec.Kind, err)
	}
	return rec, nil
}

// SearchSimilar implements memory.Store. Results are ordered by ascending
// cosine distance (most similar first).
func (s *Store) SearchSimilar(ctx context.Context, session, query string, topK int) ([]memory.SearchResult, error) {
	if topK <= 0 {
		return []memory.SearchResult{}, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres store: embed query: %w", err)
	}

	const q = `
		SELECT id, session, kind, role, content, embedding, source, created_at,
		       embedding <=> $1 AS distance
		FROM   memories
		WHERE  session = $2
		ORDER  BY distance
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(queryVec), session, topK)
	if err != nil {
		return nil, fmt.Errorf("postgres store: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.SearchResult, error) {
		var (
			sr   memory.SearchResult
			kind string
			vec  pgvector.Vector
		)
		if err := row.Scan(
			&sr.Record.ID,
			&sr.Record.Session,
			&kind,
			&sr.Record.Role,
			&sr.Record.Content,
			&vec,
			&sr.Record.Source,
			&sr.Record.CreatedAt,
			&sr.Distance,
		); err != nil {
			return memory.SearchResult{}, err
		}
		sr.Record.Kind = memory.Kind(kind)
		sr.Record.Embedding = vec.Slice()
		return sr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan rows: %w", err)
	}
	if results == nil {
		results = []memory.SearchResult{}
	}
	return results, nil
}

// Recent implements memory.Store. It returns the last n turns in
// chronological order (oldest first).
func (s *Store) Recent(ctx context.Context, session string, n int) ([]memory.Record, error) {
	if n <= 0 {
		return []memory.Record{}, nil
	}

	const q = `
		SELECT id, session, kind, role, content, source, created_at
		FROM   memories
		WHERE  session = $1 AND kind = $2
		ORDER  BY created_at DESC
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, session, string(memory.KindTurn), n)
	if err != nil {
		return nil, fmt.Errorf("postgres store: recent: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Record, error) {
		var (
			rec  memory.Record
			kind string
		)
		if err := row.Scan(
			&rec.ID,
			&rec.Session,
			&kind,
			&rec.Role,
			&rec.Content,
			&rec.Source,
			&rec.CreatedAt,
		); err != nil {
			return memory.Record{}, err
		}
		rec.Kind = memory.Kind(kind)
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan rows: %w", err)
	}

	// Rows come back newest first; flip to chronological order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	if records == nil {
		records = []memory.Record{}
	}
	return records, nil
}
