package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/mumeinosato/kira-ai/pkg/provider/llm"
)

// ── convertMessage ────────────────────────────────────────────────────────────

func TestConvertMessage_System(t *testing.T) {
	m := llm.Message{Role: "system", Content: "You are Kira."}
	got := convertMessage(m)
	if got.Role != "system" {
		t.Errorf("expected role system, got %q", got.Role)
	}
	if got.ContentString() != "You are Kira." {
		t.Errorf("expected content %q, got %q", "You are Kira.", got.ContentString())
	}
}

func TestConvertMessage_UserWithName(t *testing.T) {
	m := llm.Message{Role: "user", Content: "hi kira!", Name: "chat_viewer42"}
	got := convertMessage(m)
	if got.Role != "user" {
		t.Errorf("expected role user, got %q", got.Role)
	}
	if got.Name != "chat_viewer42" {
		t.Errorf("expected name chat_viewer42, got %q", got.Name)
	}
}

func TestConvertMessage_AssistantWithToolCalls(t *testing.T) {
	m := llm.Message{
		Role: "assistant",
		ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "web_search", Arguments: `{"query":"weather tokyo"}`},
		},
	}
	got := convertMessage(m)
	if len(got.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(got.ToolCalls))
	}
	tc := got.ToolCalls[0]
	if tc.ID != "call_1" {
		t.Errorf("expected ID call_1, got %q", tc.ID)
	}
	if tc.Function.Name != "web_search" {
		t.Errorf("expected function name web_search, got %q", tc.Function.Name)
	}
	if tc.Function.Arguments != `{"query":"weather tokyo"}` {
		t.Errorf("unexpected arguments: %q", tc.Function.Arguments)
	}
	if tc.Type != "function" {
		t.Errorf("expected type function, got %q", tc.Type)
	}
}

func TestConvertMessage_ToolResult(t *testing.T) {
	m := llm.Message{Role: "tool", Content: "sunny, 24C", ToolCallID: "call_1"}
	got := convertMessage(m)
	if got.Role != "tool" {
		t.Errorf("expected role tool, got %q", got.Role)
	}
	if got.ToolCallID != "call_1" {
		t.Errorf("expected ToolCallID call_1, got %q", got.ToolCallID)
	}
}

// ── modelCapabilities ─────────────────────────────────────────────────────────

func TestModelCapabilities_GPT4oMini(t *testing.T) {
	caps := modelCapabilities("gpt-4o-mini")
	if caps.ContextWindow != 128_000 {
		t.Errorf("gpt-4o-mini: expected context window 128000, got %d", caps.ContextWindow)
	}
	if !caps.SupportsToolCalling {
		t.Error("gpt-4o-mini: expected SupportsToolCalling=true")
	}
	if caps.MaxOutputTokens != 16_384 {
		t.Errorf("gpt-4o-mini: expected MaxOutputTokens 16384, got %d", caps.MaxOutputTokens)
	}
}

func TestModelCapabilities_Mistral(t *testing.T) {
	caps := modelCapabilities("mistral-7b-instruct-v0.2.Q4_K_M")
	if caps.ContextWindow != 32_768 {
		t.Errorf("mistral: expected context window 32768, got %d", caps.ContextWindow)
	}
}

func TestModelCapabilities_LocalGGUFDefaults(t *testing.T) {
	caps := modelCapabilities("kira-7b-q4")
	if caps.ContextWindow != 8_192 {
		t.Errorf("local model: expected context window 8192, got %d", caps.ContextWindow)
	}
	if caps.SupportsToolCalling {
		t.Error("local model: expected SupportsToolCalling=false")
	}
	if !caps.SupportsStreaming {
		t.Error("local model: expected SupportsStreaming=true")
	}
}

func TestModelCapabilities_CaseInsensitive(t *testing.T) {
	lower := modelCapabilities("gpt-4o")
	upper := modelCapabilities("GPT-4O")
	if lower.ContextWindow != upper.ContextWindow {
		t.Errorf("case should not matter: got %d vs %d", lower.ContextWindow, upper.ContextWindow)
	}
}

// ── Constructor ───────────────────────────────────────────────────────────────

func TestNew_EmptyProviderName(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Fatal("expected error for empty providerName")
	}
}

func TestNew_EmptyModel(t *testing.T) {
	if _, err := New("openai", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
}

func TestNew_UnsupportedProvider(t *testing.T) {
	if _, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy")); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestNew_AllBackends(t *testing.T) {
	// Every name the config loader accepts must construct a backend.
	names := []string{
		"llamacpp", "llamafile", "openai", "anthropic", "gemini",
		"ollama", "deepseek", "mistral", "groq",
	}
	for _, name := range names {
		if _, err := New(name, "some-model", anyllmlib.WithAPIKey("dummy")); err != nil {
			t.Errorf("New(%q) error: %v", name, err)
		}
	}
}

func TestModelCapabilities_Claude(t *testing.T) {
	caps := modelCapabilities("claude-3-5-sonnet-latest")
	if caps.ContextWindow != 200_000 {
		t.Errorf("claude: expected context window 200000, got %d", caps.ContextWindow)
	}
	if !caps.SupportsToolCalling {
		t.Error("claude: expected SupportsToolCalling=true")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (*Provider, error)
	}{
		{"NewLlamaCpp", func() (*Provider, error) { return NewLlamaCpp("kira-7b-q4") }},
		{"NewOpenAI", func() (*Provider, error) { return NewOpenAI("gpt-4o-mini", anyllmlib.WithAPIKey("sk-test")) }},
		{"NewOllama", func() (*Provider, error) { return NewOllama("llama3") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.fn()
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.name, err)
			}
			if p == nil {
				t.Fatalf("%s: expected non-nil provider", tt.name)
			}
		})
	}
}

// ── CountTokens ───────────────────────────────────────────────────────────────

func TestCountTokens_Estimation(t *testing.T) {
	p := &Provider{model: "kira-7b-q4"}
	msgs := []llm.Message{
		{Role: "user", Content: "Hello world"},
	}
	count, err := p.CountTokens(msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count <= 0 {
		t.Errorf("expected positive token count, got %d", count)
	}
}

func TestCountTokens_Empty(t *testing.T) {
	p := &Provider{model: "kira-7b-q4"}
	count, err := p.CountTokens(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 tokens for empty messages, got %d", count)
	}
}

func TestCountTokens_MultipleMessages(t *testing.T) {
	p := &Provider{model: "kira-7b-q4"}
	msgs := []llm.Message{
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there, how can I help?"},
	}
	count, err := p.CountTokens(msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	singleCount, _ := p.CountTokens(msgs[:1])
	if count <= singleCount {
		t.Errorf("expected more tokens for two messages than one: %d <= %d", count, singleCount)
	}
}
