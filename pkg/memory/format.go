package memory

import (
	"context"
	"fmt"
	"strings"
)

// FormatRecall renders recalled records as prompt lines. Summaries and
// knowledge are tagged as key memories; turns keep their speaker role:
//
//	[Key Memory]: Kira promised chat a karaoke stream on Friday.
//	[user]: what game are we playing tomorrow?
func FormatRecall(results []SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch r.Record.Kind {
		case KindSummary, KindKnowledge:
			fmt.Fprintf(&b, "[Key Memory]: %s", r.Record.Content)
		default:
			role := r.Record.Role
			if role == "" {
				role = "user"
			}
			fmt.Fprintf(&b, "[%s]: %s", role, r.Record.Content)
		}
	}
	return b.String()
}

// FormatTurns renders turn records as plain "role: content" transcript lines,
// oldest first, for inclusion in a summarisation prompt.
func FormatTurns(records []Record) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		role := r.Role
		if role == "" {
			role = "user"
		}
		fmt.Fprintf(&b, "%s: %s", role, r.Content)
	}
	return b.String()
}

// knowledgeChunkChars is the chunk size used by [AddKnowledgeChunked]. One
// chunk embeds as one record.
const knowledgeChunkChars = 1000

// AddKnowledgeChunked splits content with [ChunkText] and persists each chunk
// as its own knowledge record, so long documents stay within embedding limits
// and recall surfaces the relevant passage rather than the whole text.
func AddKnowledgeChunked(ctx context.Context, s Store, session, content, source string) ([]Record, error) {
	chunks := ChunkText(content, knowledgeChunkChars)
	records := make([]Record, 0, len(chunks))
	for _, chunk := range chunks {
		rec, err := s.AddKnowledge(ctx, session, chunk, source)
		if err != nil {
			return records, fmt.Errorf("memory: add knowledge chunk: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ChunkText splits text into chunks of at most maxChars runes, breaking at
// whitespace where possible. Used when importing knowledge files so each
// chunk embeds as one record. maxChars values below 1 default to 1000.
func ChunkText(text string, maxChars int) []string {
	if maxChars < 1 {
		maxChars = 1000
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= maxChars {
			chunks = append(chunks, strings.TrimSpace(string(runes)))
			break
		}
		cut := maxChars
		// Walk back to the nearest whitespace to avoid splitting words.
		for i := maxChars; i > maxChars/2; i-- {
			if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t' {
				cut = i
				break
			}
		}
		chunk := strings.TrimSpace(string(runes[:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
		for len(runes) > 0 && (runes[0] == ' ' || runes[0] == '\n' || runes[0] == '\t') {
			runes = runes[1:]
		}
	}
	return chunks
}
