package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mumeinosato/kira-ai/pkg/memory"
	memmock "github.com/mumeinosato/kira-ai/pkg/memory/mock"
)

const sampleResponse = `{
	"items": [
		{"title": "Elden Ring DLC release date", "link": "https://example.com/er", "snippet": "Shadow of the Erdtree launches June 21."},
		{"title": "Elden Ring wiki", "link": "https://example.com/wiki", "snippet": "Community wiki for Elden Ring."}
	]
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New("test-key", "test-cx", withBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "cx"); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := New("key", ""); err == nil {
		t.Error("expected error for empty engine id")
	}
}

func TestSearch_SendsCredentialsAndQuery(t *testing.T) {
	var gotQuery map[string]string
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"key": r.URL.Query().Get("key"),
			"cx":  r.URL.Query().Get("cx"),
			"q":   r.URL.Query().Get("q"),
			"num": r.URL.Query().Get("num"),
		}
		w.Write([]byte(sampleResponse))
	})

	items, err := c.Search(context.Background(), "elden ring dlc", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].Title != "Elden Ring DLC release date" {
		t.Errorf("items[0].Title = %q", items[0].Title)
	}
	if gotQuery["key"] != "test-key" || gotQuery["cx"] != "test-cx" {
		t.Errorf("credentials = %v, want test-key/test-cx", gotQuery)
	}
	if gotQuery["q"] != "elden ring dlc" {
		t.Errorf("q = %q, want %q", gotQuery["q"], "elden ring dlc")
	}
	if gotQuery["num"] != "2" {
		t.Errorf("num = %q, want %q", gotQuery["num"], "2")
	}
}

func TestSearch_ClampsResultCount(t *testing.T) {
	var gotNum string
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotNum = r.URL.Query().Get("num")
		w.Write([]byte(`{"items": []}`))
	})

	if _, err := c.Search(context.Background(), "q", 99); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotNum != "10" {
		t.Errorf("num = %q, want clamped to 10", gotNum)
	}

	if _, err := c.Search(context.Background(), "q", 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotNum != "3" {
		t.Errorf("num = %q, want default 3", gotNum)
	}
}

func TestSearch_APIError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "message": "quota exceeded"}}`))
	})

	_, err := c.Search(context.Background(), "anything", 3)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("err = %v, want api message included", err)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"items": []}`))
	})
	if _, err := c.Search(context.Background(), "", 3); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestDigest(t *testing.T) {
	items := []Item{
		{Title: "A", Link: "https://a", Snippet: "first"},
		{Title: "B", Link: "https://b", Snippet: "second"},
	}
	got := Digest("test", items)
	for _, want := range []string{`Web results for "test":`, "1. A", "first", "(https://a)", "2. B"} {
		if !strings.Contains(got, want) {
			t.Errorf("Digest missing %q in:\n%s", want, got)
		}
	}

	empty := Digest("nothing", nil)
	if !strings.Contains(empty, "No web results") {
		t.Errorf("empty digest = %q", empty)
	}
}

func TestNewTool_StoresDigestAsKnowledge(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(sampleResponse))
	})
	store := &memmock.Store{}
	tool := NewTool(c, store, "stream-1")

	if tool.Definition.Name != "web_search" {
		t.Fatalf("tool name = %q", tool.Definition.Name)
	}

	out, err := tool.Handler(context.Background(), `{"query": "elden ring dlc"}`)
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if !strings.Contains(out, "Shadow of the Erdtree") {
		t.Errorf("digest missing snippet: %q", out)
	}

	if n := store.CountKind("stream-1", memory.KindKnowledge); n != 1 {
		t.Fatalf("knowledge records = %d, want 1", n)
	}
	rec := store.Records[0]
	if rec.Source != "web_search:elden ring dlc" {
		t.Errorf("Source = %q", rec.Source)
	}
}

func TestNewTool_ChunksLongDigest(t *testing.T) {
	// A snippet far past the chunk size forces the digest to land as
	// several knowledge records instead of one oversized one.
	longSnippet := strings.Repeat("patch notes detail ", 150)
	c, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		resp := `{"items": [{"title": "Patch 1.12", "link": "https://example.com/p", "snippet": "` + longSnippet + `"}]}`
		w.Write([]byte(resp))
	})
	store := &memmock.Store{}
	tool := NewTool(c, store, "stream-1")

	if _, err := tool.Handler(context.Background(), `{"query": "patch notes"}`); err != nil {
		t.Fatalf("Handler: %v", err)
	}

	n := store.CountKind("stream-1", memory.KindKnowledge)
	if n < 2 {
		t.Fatalf("knowledge records = %d, want the digest split across several", n)
	}
	for _, rec := range store.Records {
		if got := len([]rune(rec.Content)); got > 1000 {
			t.Errorf("record %s has %d runes, want <= 1000", rec.ID, got)
		}
		if rec.Source != "web_search:patch notes" {
			t.Errorf("Source = %q", rec.Source)
		}
	}
}

func TestNewTool_BadArguments(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(sampleResponse))
	})
	tool := NewTool(c, nil, "stream-1")

	if _, err := tool.Handler(context.Background(), `{not json`); err == nil {
		t.Error("expected error for malformed arguments")
	}
}
