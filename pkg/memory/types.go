// Package memory defines the long-term memory model for Kira: conversation
// turns, segment summaries, and imported knowledge, all embedded for semantic
// recall.
package memory

import "time"

// Kind classifies what a memory record holds.
type Kind string

const (
	// KindTurn is a single conversation turn (one user or assistant message).
	KindTurn Kind = "turn"

	// KindSummary is a condensed summary of a conversation segment.
	KindSummary Kind = "summary"

	// KindKnowledge is an imported knowledge snippet (lore, facts, channel
	// info) loaded outside of live conversation.
	KindKnowledge Kind = "knowledge"
)

// Record is one stored memory.
type Record struct {
	// ID is a UUID assigned at write time.
	ID string

	// Session identifies the stream session this record belongs to.
	Session string

	// Kind classifies the record (turn, summary, knowledge).
	Kind Kind

	// Role is the speaker for turn records ("user", "assistant", or a chat
	// viewer name). Empty for summaries and knowledge.
	Role string

	// Content is the text of the memory.
	Content string

	// Embedding is the dense vector for Content. May be nil on records read
	// without their vectors.
	Embedding []float32

	// Source names where knowledge records came from (file path, URL).
	// Empty for other kinds.
	Source string

	// CreatedAt is the write timestamp.
	CreatedAt time.Time
}

// SearchResult pairs a recalled record with its cosine distance from the
// query (smaller is more similar).
type SearchResult struct {
	Record   Record
	Distance float64
}
