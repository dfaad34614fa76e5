package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/mumeinosato/kira-ai/pkg/provider/llm"
	llmmock "github.com/mumeinosato/kira-ai/pkg/provider/llm/mock"
)

func TestLLMFallbackComplete(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("local model crashed")}
	backup := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "from backup"},
	}

	f := NewLLMFallback(primary, "local", FallbackConfig{})
	f.AddFallback("hosted", backup)

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "from backup" {
		t.Errorf("Content = %q, want from backup", resp.Content)
	}
	if len(primary.CompleteCalls) != 1 || len(backup.CompleteCalls) != 1 {
		t.Errorf("calls: primary %d, backup %d; want 1 each",
			len(primary.CompleteCalls), len(backup.CompleteCalls))
	}
}

func TestLLMFallbackStream(t *testing.T) {
	primary := &llmmock.Provider{StreamErr: errors.New("down")}
	backup := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "hey"}, {FinishReason: "stop"}},
	}

	f := NewLLMFallback(primary, "local", FallbackConfig{})
	f.AddFallback("hosted", backup)

	ch, err := f.StreamCompletion(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}

	var text string
	for chunk := range ch {
		text += chunk.Text
	}
	if text != "hey" {
		t.Errorf("streamed text = %q, want hey", text)
	}
}

func TestLLMFallbackAllFailed(t *testing.T) {
	f := NewLLMFallback(&llmmock.Provider{CompleteErr: errors.New("a")}, "a", FallbackConfig{})
	f.AddFallback("b", &llmmock.Provider{CompleteErr: errors.New("b")})

	_, err := f.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallbackCapabilities(t *testing.T) {
	primary := &llmmock.Provider{
		ModelCapabilities: llm.ModelCapabilities{ContextWindow: 8192},
	}
	f := NewLLMFallback(primary, "local", FallbackConfig{})
	f.AddFallback("hosted", &llmmock.Provider{
		ModelCapabilities: llm.ModelCapabilities{ContextWindow: 128000},
	})

	if got := f.Capabilities().ContextWindow; got != 8192 {
		t.Errorf("ContextWindow = %d, want the primary's 8192", got)
	}
}
