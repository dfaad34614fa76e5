package memory

import "context"

// Store is the persistence abstraction for Kira's long-term memory.
//
// Implementations must be safe for concurrent use: the conversation loop
// writes turns while the background loop summarises and recalls.
type Store interface {
	// AddTurn persists one conversation turn and returns the stored record
	// with its assigned ID and timestamp.
	AddTurn(ctx context.Context, session, role, content string) (Record, error)

	// AddSummary persists a segment summary.
	AddSummary(ctx context.Context, session, content string) (Record, error)

	// AddKnowledge persists an imported knowledge snippet. source names where
	// the snippet came from and may be empty.
	AddKnowledge(ctx context.Context, session, content, source string) (Record, error)

	// SearchSimilar returns up to topK records from the session most similar
	// to query, ordered by ascending cosine distance. Results may span all
	// record kinds.
	SearchSimilar(ctx context.Context, session, query string, topK int) ([]SearchResult, error)

	// Recent returns the last n turn records of the session in chronological
	// order (oldest first).
	Recent(ctx context.Context, session string, n int) ([]Record, error)
}
