// Package websearch provides a "web_search" tool backed by the Google
// Custom Search JSON API.
//
// Results are condensed into a snippet digest small enough to insert
// directly into an LLM context window. When a memory store is supplied,
// the digest is also persisted as a knowledge record so later turns can
// recall what was looked up.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mumeinosato/kira-ai/internal/tools"
	"github.com/mumeinosato/kira-ai/pkg/memory"
	"github.com/mumeinosato/kira-ai/pkg/provider/llm"
)

// defaultBaseURL is the Google Custom Search JSON API endpoint.
const defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// defaultResultCount caps the snippets returned per search.
const defaultResultCount = 3

// maxResultCount is the API's per-request ceiling.
const maxResultCount = 10

// Client queries the Google Custom Search API. Safe for concurrent use.
type Client struct {
	apiKey     string
	engineID   string
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// withBaseURL overrides the API endpoint. Used by tests.
func withBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// New constructs a Client. apiKey is the Google API key and engineID the
// Programmable Search Engine ID (cx); both are required.
func New(apiKey, engineID string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("websearch: api key must not be empty")
	}
	if engineID == "" {
		return nil, fmt.Errorf("websearch: engine id must not be empty")
	}
	c := &Client{
		apiKey:     apiKey,
		engineID:   engineID,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Item is one search hit.
type Item struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// searchResponse mirrors the fields of the API response we consume.
type searchResponse struct {
	Items []Item `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search runs query against the configured search engine and returns up to
// num items. num values outside [1, maxResultCount] are clamped.
func (c *Client) Search(ctx context.Context, query string, num int) ([]Item, error) {
	if query == "" {
		return nil, fmt.Errorf("websearch: query must not be empty")
	}
	if num < 1 {
		num = defaultResultCount
	}
	if num > maxResultCount {
		num = maxResultCount
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("websearch: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("websearch: read response: %w", err)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("websearch: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if sr.Error != nil {
			return nil, fmt.Errorf("websearch: api error %d: %s", sr.Error.Code, sr.Error.Message)
		}
		return nil, fmt.Errorf("websearch: unexpected status %d", resp.StatusCode)
	}
	return sr.Items, nil
}

// Digest formats items into the compact text block handed back to the model.
func Digest(query string, items []Item) string {
	if len(items) == 0 {
		return fmt.Sprintf("No web results found for %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Web results for %q:\n", query)
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s\n%s\n(%s)\n", i+1, it.Title, it.Snippet, it.Link)
	}
	return strings.TrimRight(b.String(), "\n")
}

// searchArgs is the JSON-decoded input for the "web_search" tool.
type searchArgs struct {
	// Query is the search string.
	Query string `json:"query"`

	// NumResults caps the returned snippets. Defaults to 3 when ≤ 0.
	NumResults int `json:"num_results,omitempty"`
}

// NewTool wraps c as a registrable [tools.Tool]. When store is non-nil every
// digest is also written to it as a knowledge record under session, so the
// looked-up facts stay recallable after the turn ends. Store failures are
// logged, not surfaced; the search itself already succeeded.
func NewTool(c *Client, store memory.Store, session string) tools.Tool {
	return tools.Tool{
		Definition: llm.ToolDefinition{
			Name:        "web_search",
			Description: "Search the web for current information. Use for recent events, release dates, game updates or anything outside your own knowledge.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query.",
					},
					"num_results": map[string]any{
						"type":        "integer",
						"description": "How many results to return (1-10, default 3).",
					},
				},
				"required": []string{"query"},
			},
		},
		Timeout: 20 * time.Second,
		Handler: func(ctx context.Context, args string) (string, error) {
			var a searchArgs
			if err := json.Unmarshal([]byte(args), &a); err != nil {
				return "", fmt.Errorf("websearch: parse arguments: %w", err)
			}
			items, err := c.Search(ctx, a.Query, a.NumResults)
			if err != nil {
				return "", err
			}
			digest := Digest(a.Query, items)

			if store != nil && len(items) > 0 {
				if _, err := memory.AddKnowledgeChunked(ctx, store, session, digest, "web_search:"+a.Query); err != nil {
					slog.Warn("failed to store search digest", "query", a.Query, "err", err)
				}
			}
			return digest, nil
		},
	}
}
