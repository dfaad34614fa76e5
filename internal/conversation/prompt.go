package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mumeinosato/kira-ai/internal/persona"
	"github.com/mumeinosato/kira-ai/pkg/memory"
)

// defaultRecallTopK is how many semantic memories the assembler retrieves
// per prompt.
const defaultRecallTopK = 3

// defaultRecentTurns caps the stored turns pulled in alongside the semantic
// recalls.
const defaultRecentTurns = 6

// Assembler builds the per-call system prompt: the static persona prompt
// enriched with the current emotion, mood hints and everything the memory
// store recalls about the incoming text. The two store lookups run
// concurrently; assembly stays well under the turn latency budget.
type Assembler struct {
	store   memory.Store
	tracker *persona.Tracker
	state   *persona.State
	session string

	topK        int
	recentTurns int

	// mu guards systemPrompt, which the prompt file watcher may swap while
	// the loop is running.
	mu           sync.RWMutex
	systemPrompt string
}

// AssemblerOption is a functional option for [NewAssembler].
type AssemblerOption func(*Assembler)

// WithRecallTopK sets how many semantic memories are retrieved per prompt.
func WithRecallTopK(n int) AssemblerOption {
	return func(a *Assembler) { a.topK = n }
}

// WithRecentTurns sets how many stored turns are fetched alongside the
// semantic recalls. Zero disables the recent-turn fetch.
func WithRecentTurns(n int) AssemblerOption {
	return func(a *Assembler) { a.recentTurns = n }
}

// NewAssembler creates an Assembler for the given session. store may be nil,
// in which case prompts carry no memory context.
func NewAssembler(store memory.Store, profile persona.Profile, tracker *persona.Tracker, state *persona.State, session string, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		store:        store,
		tracker:      tracker,
		state:        state,
		session:      session,
		topK:         defaultRecallTopK,
		recentTurns:  defaultRecentTurns,
		systemPrompt: profile.SystemPrompt,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// SetSystemPrompt replaces the base persona prompt. Subsequent turns use the
// new prompt; the one currently being assembled keeps the old.
func (a *Assembler) SetSystemPrompt(prompt string) {
	a.mu.Lock()
	a.systemPrompt = prompt
	a.mu.Unlock()
}

func (a *Assembler) basePrompt() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.systemPrompt
}

// Assemble returns the system prompt for a turn driven by query. Memory
// lookups that fail degrade to a prompt without that section; the turn is
// never aborted over a recall miss.
func (a *Assembler) Assemble(ctx context.Context, query string) string {
	prompt := strings.Builder{}
	prompt.WriteString(a.basePrompt())

	if emotion := a.tracker.Current(); emotion != persona.EmotionNeutral {
		fmt.Fprintf(&prompt, "\n\n[Your current emotional state is: %s. Let this state subtly influence your response style and word choice.]", emotion)
	}
	if hint := a.state.PromptHint(); hint != "" {
		prompt.WriteString("\n[")
		prompt.WriteString(hint)
		prompt.WriteString("]")
	}

	if memCtx := a.memoryContext(ctx, query); memCtx != "" {
		prompt.WriteString("\n[Memory Context]:\n")
		prompt.WriteString(memCtx)
	}
	return prompt.String()
}

// memoryContext fetches semantic recalls and recent stored turns
// concurrently and formats them as prompt lines.
func (a *Assembler) memoryContext(ctx context.Context, query string) string {
	if a.store == nil || strings.TrimSpace(query) == "" {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var (
		recalls []memory.SearchResult
		recent  []memory.Record
	)
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		results, err := a.store.SearchSimilar(egCtx, a.session, query, a.topK)
		if err != nil {
			return fmt.Errorf("conversation: memory recall: %w", err)
		}
		recalls = results
		return nil
	})

	if a.recentTurns > 0 {
		eg.Go(func() error {
			records, err := a.store.Recent(egCtx, a.session, a.recentTurns)
			if err != nil {
				return fmt.Errorf("conversation: recent turns: %w", err)
			}
			recent = records
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		// Memory is an enrichment, not a dependency. The turn proceeds with
		// the static prompt.
		slog.Warn("memory context unavailable", "err", err)
		return ""
	}

	// Drop recalls that duplicate the recent turns verbatim.
	seen := make(map[string]bool, len(recent))
	for _, r := range recent {
		seen[r.Content] = true
	}
	deduped := recalls[:0]
	for _, r := range recalls {
		if !seen[r.Record.Content] {
			deduped = append(deduped, r)
		}
	}

	parts := make([]string, 0, 2)
	if s := memory.FormatRecall(deduped); s != "" {
		parts = append(parts, s)
	}
	if s := memory.FormatTurns(recent); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n")
}

// FormatChatDigest renders buffered chat messages the way they are appended
// to a voice prompt: a bullet list the model reacts to in one reply.
func FormatChatDigest(messages []string) string {
	if len(messages) == 0 {
		return ""
	}
	return "- " + strings.Join(messages, "\n- ")
}
