package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mumeinosato/kira-ai/internal/persona"
	memmock "github.com/mumeinosato/kira-ai/pkg/memory/mock"
)

func testProfile() persona.Profile {
	return persona.Profile{
		Name:         "Kira",
		SystemPrompt: "You are Kira, a witty VTuber.",
	}
}

func TestAssemble_BasePromptOnly(t *testing.T) {
	a := NewAssembler(nil, testProfile(), persona.NewTracker(), persona.NewState(), "s1")

	got := a.Assemble(context.Background(), "hello there")
	if got != "You are Kira, a witty VTuber." {
		t.Errorf("Assemble() = %q, want bare system prompt", got)
	}
}

func TestAssemble_IncludesNonNeutralEmotion(t *testing.T) {
	tracker := persona.NewTracker()
	tracker.Set(persona.EmotionSassy)
	a := NewAssembler(nil, testProfile(), tracker, persona.NewState(), "s1")

	got := a.Assemble(context.Background(), "hello")
	if !strings.Contains(got, "emotional state is: SASSY") {
		t.Errorf("Assemble() = %q, want SASSY emotion line", got)
	}
}

func TestAssemble_NeutralEmotionOmitted(t *testing.T) {
	a := NewAssembler(nil, testProfile(), persona.NewTracker(), persona.NewState(), "s1")

	got := a.Assemble(context.Background(), "hello")
	if strings.Contains(got, "emotional state") {
		t.Errorf("Assemble() = %q, neutral emotion should not be mentioned", got)
	}
}

func TestAssemble_AddsMemoryContext(t *testing.T) {
	ctx := context.Background()
	store := &memmock.Store{}
	if _, err := store.AddKnowledge(ctx, "s1", "Kira promised chat a karaoke stream.", "test"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddTurn(ctx, "s1", "user", "remember the karaoke thing?"); err != nil {
		t.Fatal(err)
	}

	a := NewAssembler(store, testProfile(), persona.NewTracker(), persona.NewState(), "s1")
	got := a.Assemble(ctx, "karaoke stream when")

	if !strings.Contains(got, "[Memory Context]:") {
		t.Fatalf("Assemble() = %q, want memory context section", got)
	}
	if !strings.Contains(got, "[Key Memory]: Kira promised chat a karaoke stream.") {
		t.Errorf("Assemble() = %q, want recalled knowledge", got)
	}
	if !strings.Contains(got, "user: remember the karaoke thing?") {
		t.Errorf("Assemble() = %q, want recent turn", got)
	}
}

func TestAssemble_SessionIsolation(t *testing.T) {
	ctx := context.Background()
	store := &memmock.Store{}
	if _, err := store.AddKnowledge(ctx, "other", "secret from another stream", "test"); err != nil {
		t.Fatal(err)
	}

	a := NewAssembler(store, testProfile(), persona.NewTracker(), persona.NewState(), "s1")
	got := a.Assemble(ctx, "secret stream")

	if strings.Contains(got, "another stream") {
		t.Errorf("Assemble() = %q, leaked a record from another session", got)
	}
}

func TestAssemble_RecallDuplicatingRecentTurnDropped(t *testing.T) {
	ctx := context.Background()
	store := &memmock.Store{}
	if _, err := store.AddTurn(ctx, "s1", "user", "elden ring is hard"); err != nil {
		t.Fatal(err)
	}

	a := NewAssembler(store, testProfile(), persona.NewTracker(), persona.NewState(), "s1")
	got := a.Assemble(ctx, "elden ring is hard")

	if n := strings.Count(got, "elden ring is hard"); n != 1 {
		t.Errorf("Assemble() repeated the turn %d times, want 1:\n%s", n, got)
	}
}

func TestAssemble_StoreFailureDegradesToBasePrompt(t *testing.T) {
	store := &memmock.Store{Err: errors.New("connection refused")}
	a := NewAssembler(store, testProfile(), persona.NewTracker(), persona.NewState(), "s1")

	got := a.Assemble(context.Background(), "hello there")
	if strings.Contains(got, "[Memory Context]:") {
		t.Errorf("Assemble() = %q, failed store must not add a memory section", got)
	}
	if !strings.Contains(got, "You are Kira") {
		t.Errorf("Assemble() = %q, base prompt missing", got)
	}
}

func TestAssemble_BlankQuerySkipsMemory(t *testing.T) {
	store := &memmock.Store{Err: errors.New("must not be called")}
	a := NewAssembler(store, testProfile(), persona.NewTracker(), persona.NewState(), "s1")

	got := a.Assemble(context.Background(), "   ")
	if strings.Contains(got, "[Memory Context]:") {
		t.Errorf("Assemble() = %q, blank query must skip memory", got)
	}
}

func TestFormatChatDigest(t *testing.T) {
	if got := FormatChatDigest(nil); got != "" {
		t.Errorf("FormatChatDigest(nil) = %q, want empty", got)
	}

	got := FormatChatDigest([]string{"mio: hi kira", "bob: play doom"})
	want := "- mio: hi kira\n- bob: play doom"
	if got != want {
		t.Errorf("FormatChatDigest() = %q, want %q", got, want)
	}
}
