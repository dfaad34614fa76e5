package persona

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestEnforcerCheck(t *testing.T) {
	e := NewEnforcer([]string{"subscribe to my patreon"})

	tests := []struct {
		name          string
		text          string
		wantBlocking  bool
		wantViolation bool
	}{
		{
			name: "clean response",
			text: "Honestly chat, that boss fight was embarrassing for everyone involved.",
		},
		{
			name:          "ai disclosure",
			text:          "As an AI, I don't really have opinions on that.",
			wantBlocking:  true,
			wantViolation: true,
		},
		{
			name:          "custom banned phrase",
			text:          "Don't forget to Subscribe To My Patreon!",
			wantBlocking:  true,
			wantViolation: true,
		},
		{
			name:          "stage direction warns only",
			text:          "*giggles* okay that was actually funny",
			wantViolation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := e.Check(tt.text)
			if got := len(violations) > 0; got != tt.wantViolation {
				t.Fatalf("Check(%q) violations = %v, want any=%v", tt.text, violations, tt.wantViolation)
			}
			if got := hasBlocking(violations); got != tt.wantBlocking {
				t.Errorf("Check(%q) blocking = %v, want %v", tt.text, got, tt.wantBlocking)
			}
		})
	}
}

func TestEnforcePassesCleanText(t *testing.T) {
	e := NewEnforcer(nil)

	called := false
	got, err := e.Enforce(context.Background(), "all good here", func(ctx context.Context, directive string) (string, error) {
		called = true
		return "", nil
	})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if got != "all good here" {
		t.Errorf("Enforce = %q, want input unchanged", got)
	}
	if called {
		t.Error("regenerate should not run for clean text")
	}
}

func TestEnforceRegeneratesOnce(t *testing.T) {
	e := NewEnforcer(nil)

	var directives []string
	got, err := e.Enforce(context.Background(), "I am a language model you know", func(ctx context.Context, directive string) (string, error) {
		directives = append(directives, directive)
		return "Anyway, back to the game.", nil
	})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if got != "Anyway, back to the game." {
		t.Errorf("Enforce = %q, want regenerated text", got)
	}
	if len(directives) != 1 {
		t.Fatalf("regenerate called %d times, want 1", len(directives))
	}
	if !strings.Contains(directives[0], "language model") {
		t.Errorf("directive should name the violation, got %q", directives[0])
	}
}

func TestEnforceFallsBackAfterSecondViolation(t *testing.T) {
	e := NewEnforcer(nil)

	got, err := e.Enforce(context.Background(), "as an AI I can't", func(ctx context.Context, directive string) (string, error) {
		return "Well, as an AI, still no.", nil
	})
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if got != fallbackLine {
		t.Errorf("Enforce = %q, want fallback line", got)
	}
}

func TestEnforceRegenerateError(t *testing.T) {
	e := NewEnforcer(nil)

	_, err := e.Enforce(context.Background(), "as an AI I can't", func(ctx context.Context, directive string) (string, error) {
		return "", errors.New("backend down")
	})
	if err == nil {
		t.Fatal("expected error from failed regeneration")
	}
}

func TestEnforceNilRegenerate(t *testing.T) {
	e := NewEnforcer(nil)

	got, err := e.Enforce(context.Background(), "as an AI I can't", nil)
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if got != fallbackLine {
		t.Errorf("Enforce = %q, want fallback line when no regenerator is available", got)
	}
}
