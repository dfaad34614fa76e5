// Package memoryrecall exposes semantic memory lookup as a "recall_memory"
// tool, letting the model search past turns, summaries and imported
// knowledge mid-conversation instead of relying only on what the prompt
// assembler retrieved up front.
package memoryrecall

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mumeinosato/kira-ai/internal/tools"
	"github.com/mumeinosato/kira-ai/pkg/memory"
	"github.com/mumeinosato/kira-ai/pkg/provider/llm"
)

// defaultTopK is the result limit when the model does not set one.
const defaultTopK = 5

// recallArgs is the JSON-decoded input for the "recall_memory" tool.
type recallArgs struct {
	// Query is the text to search memories for.
	Query string `json:"query"`

	// TopK caps the number of memories returned. Defaults to 5 when ≤ 0.
	TopK int `json:"top_k,omitempty"`
}

// NewTool wraps store as a registrable [tools.Tool] searching session.
func NewTool(store memory.Store, session string) tools.Tool {
	return tools.Tool{
		Definition: llm.ToolDefinition{
			Name:        "recall_memory",
			Description: "Search your long-term memory of past streams and conversations. Use when asked about something you discussed before.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "What to search your memory for.",
					},
					"top_k": map[string]any{
						"type":        "integer",
						"description": "How many memories to return (default 5).",
					},
				},
				"required": []string{"query"},
			},
		},
		Handler: func(ctx context.Context, args string) (string, error) {
			var a recallArgs
			if err := json.Unmarshal([]byte(args), &a); err != nil {
				return "", fmt.Errorf("memoryrecall: parse arguments: %w", err)
			}
			if a.Query == "" {
				return "", fmt.Errorf("memoryrecall: query must not be empty")
			}
			topK := a.TopK
			if topK <= 0 {
				topK = defaultTopK
			}

			results, err := store.SearchSimilar(ctx, session, a.Query, topK)
			if err != nil {
				return "", fmt.Errorf("memoryrecall: %w", err)
			}
			return memory.FormatRecall(results), nil
		},
	}
}
