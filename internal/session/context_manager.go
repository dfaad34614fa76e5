package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/mumeinosato/kira-ai/pkg/provider/llm"
)

// charsPerToken is the heuristic ratio used for token estimation. English
// text averages roughly 4 characters per token across common tokenizers,
// which is close enough for budgeting without a tokenizer dependency.
const charsPerToken = 4

// ContextManager keeps the working conversation history inside a token
// budget. When the estimated count exceeds thresholdRatio times maxTokens,
// the oldest half of the messages is summarised and replaced by a compact
// summary message, so a stream can run for hours without overflowing a small
// local model's context window.
//
// All methods are safe for concurrent use.
type ContextManager struct {
	maxTokens      int
	thresholdRatio float64
	summariser     Summariser

	mu            sync.Mutex
	currentTokens int
	messages      []llm.Message
	summaries     []string
}

// ContextManagerConfig configures a [ContextManager].
type ContextManagerConfig struct {
	// MaxTokens is the model's context window size (e.g., 8192).
	MaxTokens int

	// ThresholdRatio is the fraction of MaxTokens at which summarisation
	// triggers. Defaults to 0.75 if zero or negative.
	ThresholdRatio float64

	// Summariser compresses older messages when the threshold is exceeded.
	// Must not be nil.
	Summariser Summariser
}

// NewContextManager creates a [ContextManager] with the given configuration.
func NewContextManager(cfg ContextManagerConfig) *ContextManager {
	ratio := cfg.ThresholdRatio
	if ratio <= 0 {
		ratio = 0.75
	}
	return &ContextManager{
		maxTokens:      cfg.MaxTokens,
		thresholdRatio: ratio,
		summariser:     cfg.Summariser,
	}
}

// AddMessages appends messages and updates the token estimate. If the
// accumulated tokens exceed the threshold, the oldest half of the messages
// is summarised and replaced.
func (cm *ContextManager) AddMessages(ctx context.Context, msgs ...llm.Message) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for _, m := range msgs {
		cm.messages = append(cm.messages, m)
		cm.currentTokens += estimateTokens(m)
	}

	threshold := int(float64(cm.maxTokens) * cm.thresholdRatio)
	if cm.currentTokens > threshold && len(cm.messages) > 1 {
		if err := cm.summariseOldest(ctx); err != nil {
			return fmt.Errorf("session: auto-summarise: %w", err)
		}
	}
	return nil
}

// Messages returns the conversation history ready for prompting: summary
// messages first, then the live messages in order.
func (cm *ContextManager) Messages() []llm.Message {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	result := make([]llm.Message, 0, len(cm.summaries)+len(cm.messages))
	for _, s := range cm.summaries {
		result = append(result, llm.Message{
			Role:    "system",
			Content: fmt.Sprintf("[Earlier in the stream]: %s", s),
		})
	}
	return append(result, cm.messages...)
}

// TokenEstimate returns the current estimated token count, including
// summary tokens.
func (cm *ContextManager) TokenEstimate() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.currentTokens
}

// Reset clears all messages and summaries.
func (cm *ContextManager) Reset() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.messages = cm.messages[:0]
	cm.summaries = cm.summaries[:0]
	cm.currentTokens = 0
}

// summariseOldest compresses the oldest half of the messages into a
// summary. Must be called with cm.mu held.
func (cm *ContextManager) summariseOldest(ctx context.Context) error {
	half := len(cm.messages) / 2
	if half == 0 {
		half = 1
	}

	toSummarise := make([]llm.Message, half)
	copy(toSummarise, cm.messages[:half])

	// Release the lock for the slow LLM call.
	cm.mu.Unlock()
	summary, err := cm.summariser.Summarise(ctx, toSummarise)
	cm.mu.Lock()
	if err != nil {
		return err
	}

	removedTokens := 0
	for _, m := range cm.messages[:half] {
		removedTokens += estimateTokens(m)
	}

	cm.messages = cm.messages[half:]
	cm.currentTokens -= removedTokens

	cm.summaries = append(cm.summaries, summary)
	cm.currentTokens += len(summary) / charsPerToken
	return nil
}

// estimateTokens returns a rough token count for a single message.
func estimateTokens(m llm.Message) int {
	chars := len(m.Content) + len(m.Role) + len(m.Name)
	for _, tc := range m.ToolCalls {
		chars += len(tc.Name) + len(tc.Arguments) + len(tc.ID)
	}
	tokens := chars / charsPerToken
	if tokens == 0 && chars > 0 {
		tokens = 1
	}
	return tokens
}
