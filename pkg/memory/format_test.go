package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestFormatRecall(t *testing.T) {
	results := []SearchResult{
		{Record: Record{Kind: KindSummary, Content: "Kira promised a karaoke stream."}},
		{Record: Record{Kind: KindTurn, Role: "user", Content: "what game tomorrow?"}},
		{Record: Record{Kind: KindKnowledge, Content: "Kira's favourite food is taiyaki."}},
		{Record: Record{Kind: KindTurn, Content: "no role set"}},
	}
	got := FormatRecall(results)
	lines := strings.Split(got, "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), got)
	}
	if lines[0] != "[Key Memory]: Kira promised a karaoke stream." {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "[user]: what game tomorrow?" {
		t.Errorf("line 1 = %q", lines[1])
	}
	if lines[2] != "[Key Memory]: Kira's favourite food is taiyaki." {
		t.Errorf("line 2 = %q", lines[2])
	}
	if lines[3] != "[user]: no role set" {
		t.Errorf("line 3 = %q", lines[3])
	}
}

func TestFormatRecallEmpty(t *testing.T) {
	if got := FormatRecall(nil); got != "" {
		t.Errorf("FormatRecall(nil) = %q, want empty", got)
	}
}

func TestFormatTurns(t *testing.T) {
	records := []Record{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hey there!"},
	}
	got := FormatTurns(records)
	want := "user: hi\nassistant: hey there!"
	if got != want {
		t.Errorf("FormatTurns = %q, want %q", got, want)
	}
}

func TestChunkTextShort(t *testing.T) {
	chunks := ChunkText("hello world", 1000)
	if len(chunks) != 1 || chunks[0] != "hello world" {
		t.Errorf("chunks = %v", chunks)
	}
}

func TestChunkTextSplitsAtWhitespace(t *testing.T) {
	text := strings.Repeat("word ", 100) // 500 chars
	chunks := ChunkText(text, 120)
	if len(chunks) < 4 {
		t.Fatalf("expected at least 4 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 120 {
			t.Errorf("chunk %d length %d exceeds max", i, len(c))
		}
		if strings.HasPrefix(c, " ") || strings.HasSuffix(c, " ") {
			t.Errorf("chunk %d not trimmed: %q", i, c)
		}
	}
	// Re-joined chunks preserve every word.
	joined := strings.Fields(strings.Join(chunks, " "))
	if len(joined) != 100 {
		t.Errorf("expected 100 words after chunking, got %d", len(joined))
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if chunks := ChunkText("   \n  ", 100); chunks != nil {
		t.Errorf("expected nil for blank input, got %v", chunks)
	}
}

func TestChunkTextDefaultMax(t *testing.T) {
	text := strings.Repeat("a", 1500)
	chunks := ChunkText(text, 0)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks with default max, got %d", len(chunks))
	}
	if len(chunks[0]) != 1000 {
		t.Errorf("first chunk length = %d, want 1000 (no whitespace to break at)", len(chunks[0]))
	}
}

// knowledgeSink records AddKnowledge calls; the embedded Store panics on
// anything else.
type knowledgeSink struct {
	Store
	contents []string
	sources  []string
}

func (k *knowledgeSink) AddKnowledge(_ context.Context, _, content, source string) (Record, error) {
	k.contents = append(k.contents, content)
	k.sources = append(k.sources, source)
	return Record{ID: fmt.Sprintf("rec-%d", len(k.contents)), Kind: KindKnowledge, Content: content, Source: source}, nil
}

func TestAddKnowledgeChunked(t *testing.T) {
	sink := &knowledgeSink{}
	text := strings.Repeat("fact ", 500) // 2500 chars, splits into three chunks

	records, err := AddKnowledgeChunked(context.Background(), sink, "stream-1", text, "import:lore.txt")
	if err != nil {
		t.Fatalf("AddKnowledgeChunked: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	for i, content := range sink.contents {
		if n := len([]rune(content)); n > 1000 {
			t.Errorf("chunk %d has %d runes, want <= 1000", i, n)
		}
		if sink.sources[i] != "import:lore.txt" {
			t.Errorf("chunk %d source = %q", i, sink.sources[i])
		}
	}
}

func TestAddKnowledgeChunkedShortText(t *testing.T) {
	sink := &knowledgeSink{}
	records, err := AddKnowledgeChunked(context.Background(), sink, "stream-1", "one short fact", "chat")
	if err != nil {
		t.Fatalf("AddKnowledgeChunked: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if sink.contents[0] != "one short fact" {
		t.Errorf("content = %q", sink.contents[0])
	}
}
