// Package session manages the working conversation state of a stream:
// context window budgeting ([ContextManager]), conversation summarisation
// ([Summariser], [LLMSummariser]) and periodic long-term memory
// consolidation ([Consolidator]).
//
// All exported types are safe for concurrent use.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/mumeinosato/kira-ai/pkg/provider/llm"
)

// summarisationPrompt is the system prompt used when compressing older
// conversation history to stay inside the model's context window.
const summarisationPrompt = `Summarise the following segment of a live stream conversation between a VTuber and her audience.
Preserve: topics discussed, viewer names and what they said, jokes or running gags, promises made, and the streamer's mood.
Be concise but keep everything that could come up again later in the stream.`

// Summariser produces a concise summary of a conversation segment.
type Summariser interface {
	Summarise(ctx context.Context, messages []llm.Message) (string, error)
}

// LLMSummariser summarises conversations with an LLM provider.
type LLMSummariser struct {
	llm llm.Provider
}

// NewLLMSummariser creates an [LLMSummariser] backed by the given provider.
func NewLLMSummariser(provider llm.Provider) *LLMSummariser {
	return &LLMSummariser{llm: provider}
}

// Summarise formats messages into a transcript and asks the model for a
// condensed summary.
func (s *LLMSummariser) Summarise(ctx context.Context, messages []llm.Message) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}

	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: summarisationPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: formatTranscript(messages)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("session: summarise: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return strings.TrimSpace(resp.Content), nil
}

// formatTranscript renders messages as "[speaker]: text" lines.
func formatTranscript(messages []llm.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		speaker := m.Role
		if m.Name != "" {
			speaker = m.Name
		}
		fmt.Fprintf(&sb, "[%s]: %s\n", speaker, m.Content)
	}
	return sb.String()
}
