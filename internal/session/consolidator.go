package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mumeinosato/kira-ai/pkg/memory"
	"github.com/mumeinosato/kira-ai/pkg/provider/llm"
)

// defaultTurnThreshold is how many completed conversation turns accumulate
// before a consolidation pass runs.
const defaultTurnThreshold = 8

// noMemorySentinel is the exact reply the consolidation prompt instructs
// the model to give when nothing in the segment is worth remembering.
const noMemorySentinel = "NO_MEMORY"

// consolidationPrompt asks the model to distil a conversation segment into
// one durable memory, or to decline with the sentinel.
const consolidationPrompt = `You condense live stream conversation into long-term memory for the streamer.
Given the transcript, write ONE short paragraph capturing only facts worth remembering in future streams: viewer names and details they shared, promises, running jokes, strong opinions.
If nothing is worth remembering, reply with exactly NO_MEMORY and nothing else.`

// Consolidator batches completed conversation turns and periodically
// distils them into the long-term memory store. The model may decline with
// the NO_MEMORY sentinel, in which case the segment is discarded.
//
// All methods are safe for concurrent use.
type Consolidator struct {
	store     memory.Store
	llm       llm.Provider
	session   string
	threshold int

	mu      sync.Mutex
	pending []llm.Message
	turns   int
}

// ConsolidatorConfig configures a [Consolidator].
type ConsolidatorConfig struct {
	// Store receives the distilled summaries.
	Store memory.Store

	// LLM produces the summaries.
	LLM llm.Provider

	// Session identifies the current stream.
	Session string

	// TurnThreshold is how many turns accumulate before consolidation.
	// Defaults to 8 if zero or negative.
	TurnThreshold int
}

// NewConsolidator creates a [Consolidator] with the given configuration.
func NewConsolidator(cfg ConsolidatorConfig) *Consolidator {
	threshold := cfg.TurnThreshold
	if threshold <= 0 {
		threshold = defaultTurnThreshold
	}
	return &Consolidator{
		store:     cfg.Store,
		llm:       cfg.LLM,
		session:   cfg.Session,
		threshold: threshold,
	}
}

// ObserveTurn records one completed exchange. When the turn threshold is
// reached the pending segment is consolidated immediately. Returns true if
// a consolidation pass ran.
func (c *Consolidator) ObserveTurn(ctx context.Context, userText, assistantText string) (bool, error) {
	c.mu.Lock()
	c.pending = append(c.pending,
		llm.Message{Role: "user", Content: userText},
		llm.Message{Role: "assistant", Content: assistantText},
	)
	c.turns++
	due := c.turns >= c.threshold
	c.mu.Unlock()

	if !due {
		return false, nil
	}
	return true, c.Flush(ctx)
}

// PendingTurns reports how many turns are waiting for consolidation.
func (c *Consolidator) PendingTurns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turns
}

// Flush consolidates whatever is pending, regardless of the threshold.
// Called on shutdown so the tail of a stream is not lost.
func (c *Consolidator) Flush(ctx context.Context) error {
	c.mu.Lock()
	segment := c.pending
	c.pending = nil
	c.turns = 0
	c.mu.Unlock()

	if len(segment) == 0 {
		return nil
	}

	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: consolidationPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: formatTranscript(segment)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return fmt.Errorf("session: consolidate: %w", err)
	}

	summary := ""
	if resp != nil {
		summary = cleanConsolidation(resp.Content)
	}
	if summary == "" {
		slog.Debug("consolidation produced no memory", "session", c.session, "turns", len(segment)/2)
		return nil
	}

	if _, err := c.store.AddSummary(ctx, c.session, summary); err != nil {
		return fmt.Errorf("session: store consolidated memory: %w", err)
	}
	slog.Info("consolidated conversation into memory", "session", c.session, "chars", len(summary))
	return nil
}

// cleanConsolidation normalises a consolidation reply. The sentinel (alone
// or as a prefix) means no memory; trailing meta commentary starting with
// "(Note:" is stripped, as small models like to append it.
func cleanConsolidation(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(strings.ToUpper(s), noMemorySentinel) {
		return ""
	}
	if idx := strings.Index(s, "(Note:"); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	return s
}
