package persona

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/mumeinosato/kira-ai/pkg/provider/llm"
)

// Emotion is the character's current display emotion. It drives avatar
// expression and is appended to prompts so responses stay tonally coherent.
type Emotion string

const (
	EmotionNeutral Emotion = "NEUTRAL"
	EmotionHappy   Emotion = "HAPPY"
	EmotionSad     Emotion = "SAD"
	EmotionAngry   Emotion = "ANGRY"
	EmotionSassy   Emotion = "SASSY"
)

// allEmotions is the closed set the classifier may return.
var allEmotions = []Emotion{EmotionHappy, EmotionSad, EmotionAngry, EmotionSassy, EmotionNeutral}

// Emotions returns the full emotion set in classifier order.
func Emotions() []Emotion {
	return append([]Emotion(nil), allEmotions...)
}

// ParseEmotion maps a free-form string onto the emotion set.
// Matching is case-insensitive and tolerant of surrounding text.
func ParseEmotion(s string) (Emotion, bool) {
	upper := strings.ToUpper(s)
	for _, e := range allEmotions {
		if strings.Contains(upper, string(e)) {
			return e, true
		}
	}
	return EmotionNeutral, false
}

// decayChance is the per-turn probability that a drifted emotion settles
// back to the baseline.
const decayChance = 0.10

// TrackerOption configures a [Tracker].
type TrackerOption func(*Tracker)

// WithBaseline sets the emotion the character starts at and decays back to.
// The default is [EmotionNeutral].
func WithBaseline(e Emotion) TrackerOption {
	return func(t *Tracker) {
		t.baseline = e
		t.current = e
	}
}

// withRandFloat overrides the random source. Used in tests.
func withRandFloat(fn func() float64) TrackerOption {
	return func(t *Tracker) {
		t.randFloat = fn
	}
}

// Tracker holds the current emotion and applies per-turn decay toward the
// baseline. Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	current   Emotion
	baseline  Emotion
	randFloat func() float64
}

// NewTracker creates a Tracker starting at its baseline emotion.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		current:   EmotionNeutral,
		baseline:  EmotionNeutral,
		randFloat: rand.Float64,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Current returns the present emotion.
func (t *Tracker) Current() Emotion {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Set replaces the current emotion. Returns true if it changed.
func (t *Tracker) Set(e Emotion) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == e {
		return false
	}
	t.current = e
	return true
}

// Baseline returns the emotion the tracker settles back to.
func (t *Tracker) Baseline() Emotion {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.baseline
}

// Decay gives a drifted emotion a 10% chance of settling back to the
// baseline. Called once per conversation turn. Returns true if the emotion
// changed.
func (t *Tracker) Decay() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == t.baseline {
		return false
	}
	if t.randFloat() >= decayChance {
		return false
	}
	t.current = t.baseline
	return true
}

// Classifier derives the emotion conveyed by a generated response using a
// constrained LLM completion.
type Classifier struct {
	provider llm.Provider
}

// NewClassifier creates a Classifier backed by provider.
func NewClassifier(provider llm.Provider) *Classifier {
	return &Classifier{provider: provider}
}

// Classify asks the model which emotion text conveys. The prompt constrains
// the answer to one word from the emotion set; anything unparseable falls
// back to [EmotionNeutral] without error so a flaky classification never
// blocks a turn.
func (c *Classifier) Classify(ctx context.Context, text string) (Emotion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return EmotionNeutral, nil
	}

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: "You classify the emotional tone of text. Answer with exactly one word: HAPPY, SAD, ANGRY, SASSY or NEUTRAL. No other output.",
		Messages: []llm.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Classify the emotion of this line:\n%s", text),
		}},
		Temperature: 0,
		MaxTokens:   4,
	})
	if err != nil {
		return EmotionNeutral, fmt.Errorf("persona: classify emotion: %w", err)
	}
	if resp == nil {
		return EmotionNeutral, nil
	}

	emotion, _ := ParseEmotion(resp.Content)
	return emotion, nil
}
