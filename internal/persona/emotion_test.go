package persona

import (
	"context"
	"errors"
	"testing"

	"github.com/mumeinosato/kira-ai/pkg/provider/llm"
	llmmock "github.com/mumeinosato/kira-ai/pkg/provider/llm/mock"
)

func TestParseEmotion(t *testing.T) {
	tests := []struct {
		in     string
		want   Emotion
		wantOK bool
	}{
		{"HAPPY", EmotionHappy, true},
		{"happy", EmotionHappy, true},
		{"The emotion is SASSY.", EmotionSassy, true},
		{"angry\n", EmotionAngry, true},
		{"neutral", EmotionNeutral, true},
		{"confused", EmotionNeutral, false},
		{"", EmotionNeutral, false},
	}

	for _, tt := range tests {
		got, ok := ParseEmotion(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseEmotion(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestTrackerSetAndCurrent(t *testing.T) {
	tr := NewTracker()
	if got := tr.Current(); got != EmotionNeutral {
		t.Fatalf("initial emotion = %v, want NEUTRAL", got)
	}
	if !tr.Set(EmotionHappy) {
		t.Error("Set to a new emotion should report change")
	}
	if tr.Set(EmotionHappy) {
		t.Error("Set to the same emotion should report no change")
	}
	if got := tr.Current(); got != EmotionHappy {
		t.Errorf("Current = %v, want HAPPY", got)
	}
}

func TestTrackerDecay(t *testing.T) {
	// Force the decay roll to hit.
	tr := NewTracker(withRandFloat(func() float64 { return 0.05 }))
	tr.Set(EmotionAngry)
	if !tr.Decay() {
		t.Error("Decay should trigger when the roll is under the chance")
	}
	if got := tr.Current(); got != EmotionNeutral {
		t.Errorf("Current after decay = %v, want NEUTRAL", got)
	}

	// Neutral never decays, regardless of the roll.
	if tr.Decay() {
		t.Error("Decay on NEUTRAL should be a no-op")
	}

	// Force the roll to miss.
	tr2 := NewTracker(withRandFloat(func() float64 { return 0.5 }))
	tr2.Set(EmotionSad)
	if tr2.Decay() {
		t.Error("Decay should not trigger when the roll is over the chance")
	}
	if got := tr2.Current(); got != EmotionSad {
		t.Errorf("Current = %v, want SAD", got)
	}
}

func TestTrackerDecayToBaseline(t *testing.T) {
	// A sunny character starts happy and settles back to happy.
	tr := NewTracker(WithBaseline(EmotionHappy), withRandFloat(func() float64 { return 0.05 }))
	if got := tr.Current(); got != EmotionHappy {
		t.Fatalf("initial emotion = %v, want the HAPPY baseline", got)
	}
	if got := tr.Baseline(); got != EmotionHappy {
		t.Fatalf("Baseline = %v, want HAPPY", got)
	}

	tr.Set(EmotionSassy)
	if !tr.Decay() {
		t.Error("Decay should trigger when the roll is under the chance")
	}
	if got := tr.Current(); got != EmotionHappy {
		t.Errorf("Current after decay = %v, want HAPPY", got)
	}

	// At the baseline, decay is a no-op and NEUTRAL counts as a drift.
	if tr.Decay() {
		t.Error("Decay at the baseline should be a no-op")
	}
	tr.Set(EmotionNeutral)
	if !tr.Decay() {
		t.Error("Decay should pull NEUTRAL back to a non-neutral baseline")
	}
	if got := tr.Current(); got != EmotionHappy {
		t.Errorf("Current = %v, want HAPPY", got)
	}
}

func TestClassifier(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "SASSY"},
	}
	c := NewClassifier(provider)

	got, err := c.Classify(context.Background(), "oh please, like chat knows better than me")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != EmotionSassy {
		t.Errorf("Classify = %v, want SASSY", got)
	}

	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("expected 1 Complete call, got %d", len(provider.CompleteCalls))
	}
	req := provider.CompleteCalls[0].Req
	if req.Temperature != 0 {
		t.Errorf("classification should use temperature 0, got %v", req.Temperature)
	}
	if req.SystemPrompt == "" {
		t.Error("classification should set a constraining system prompt")
	}
}

func TestClassifierFallsBackToNeutral(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "I would say it is melancholic."},
	}
	c := NewClassifier(provider)

	got, err := c.Classify(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != EmotionNeutral {
		t.Errorf("unparseable answer should fall back to NEUTRAL, got %v", got)
	}
}

func TestClassifierError(t *testing.T) {
	provider := &llmmock.Provider{CompleteErr: errors.New("backend down")}
	c := NewClassifier(provider)

	got, err := c.Classify(context.Background(), "some text")
	if err == nil {
		t.Fatal("expected error")
	}
	if got != EmotionNeutral {
		t.Errorf("errored classification should return NEUTRAL, got %v", got)
	}
}

func TestClassifierEmptyText(t *testing.T) {
	provider := &llmmock.Provider{}
	c := NewClassifier(provider)

	got, err := c.Classify(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != EmotionNeutral {
		t.Errorf("blank text should classify as NEUTRAL, got %v", got)
	}
	if len(provider.CompleteCalls) != 0 {
		t.Error("blank text should not hit the provider")
	}
}
