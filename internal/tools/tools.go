// Package tools defines the in-process tool registry offered to
// tool-capable LLMs during a conversation turn.
//
// Each [Tool] carries its LLM-facing schema ([llm.ToolDefinition]) together
// with the handler invoked when the model calls it. The [Registry] routes
// tool calls by name, enforces per-tool timeouts, and returns results ready
// for insertion into the conversation as "tool" messages.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mumeinosato/kira-ai/pkg/provider/llm"
)

// defaultTimeout bounds a tool execution when the tool declares none.
const defaultTimeout = 10 * time.Second

// maxResultRunes caps how much tool output flows back into the prompt. An
// oversized result is cut, not rejected; the model still gets the head.
const maxResultRunes = 4000

// truncationMark is appended to a cut result so the model knows it is
// looking at a prefix.
const truncationMark = "\n[result truncated]"

// Tool is one callable tool.
type Tool struct {
	// Definition is the tool's LLM-facing schema: name, description and
	// JSON Schema parameters.
	Definition llm.ToolDefinition

	// Handler executes the tool with JSON-encoded args and returns a result
	// string on success. Implementations must be safe for concurrent use and
	// must respect context cancellation.
	Handler func(ctx context.Context, args string) (string, error)

	// Timeout is the hard execution deadline. Zero means [defaultTimeout].
	Timeout time.Duration
}

// Result holds the outcome of one tool execution. When IsError is true,
// Content carries the error message so the model can react to the failure;
// transport-level problems are returned as a Go error instead.
type Result struct {
	Content  string
	IsError  bool
	Duration time.Duration
}

// Registry routes tool calls by name. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds ts to the registry. A tool whose name is already registered
// replaces the previous entry.
func (r *Registry) Register(ts ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range ts {
		if _, exists := r.tools[t.Definition.Name]; !exists {
			r.order = append(r.order, t.Definition.Name)
		}
		r.tools[t.Definition.Name] = t
	}
}

// Definitions returns the schemas of all registered tools in registration
// order, ready to attach to an [llm.CompletionRequest].
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs the tool named in call. Handler errors and panics are folded
// into the returned [Result] with IsError set so the caller can hand them
// back to the model; an unknown tool name is a Go error. Results longer than
// [maxResultRunes] are truncated.
func (r *Registry) Execute(ctx context.Context, call llm.ToolCall) (Result, error) {
	r.mu.RLock()
	t, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("tools: unknown tool %q", call.Name)
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	content, err := runHandler(ctx, t, call.Arguments)
	elapsed := time.Since(start)

	if err != nil {
		slog.Warn("tool execution failed", "tool", call.Name, "err", err, "duration", elapsed)
		return Result{Content: err.Error(), IsError: true, Duration: elapsed}, nil
	}

	if runes := []rune(content); len(runes) > maxResultRunes {
		slog.Debug("tool result truncated", "tool", call.Name, "runes", len(runes))
		content = string(runes[:maxResultRunes]) + truncationMark
	}

	slog.Debug("tool executed", "tool", call.Name, "duration", elapsed)
	return Result{Content: content, Duration: elapsed}, nil
}

// runHandler invokes the tool handler, converting a panic into an error so
// one broken tool cannot take down the stream.
func runHandler(ctx context.Context, t Tool, args string) (content string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tools: %s panicked: %v", t.Definition.Name, rec)
		}
	}()
	return t.Handler(ctx, args)
}
