package persona

import (
	"strings"
	"testing"
)

func TestDirectorPlanModes(t *testing.T) {
	d := NewDirector(NewState(), NewTracker(), 0.8)

	tests := []struct {
		mode         Mode
		wantContains string
	}{
		{ModeRespond, "Reply"},
		{ModeChatReact, "chat"},
		{ModeThought, "unprompted"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			plan := d.Plan(tt.mode)
			if plan.Mode != tt.mode {
				t.Errorf("Mode = %v, want %v", plan.Mode, tt.mode)
			}
			if !strings.Contains(plan.Directive, tt.wantContains) {
				t.Errorf("Directive = %q, want it to mention %q", plan.Directive, tt.wantContains)
			}
			if plan.MaxTokens <= 0 {
				t.Errorf("MaxTokens = %d, want > 0", plan.MaxTokens)
			}
			if plan.Temperature < 0.1 || plan.Temperature > 1.5 {
				t.Errorf("Temperature = %v, want within [0.1, 1.5]", plan.Temperature)
			}
		})
	}
}

func TestDirectorPlanIncludesEmotion(t *testing.T) {
	tracker := NewTracker()
	d := NewDirector(NewState(), tracker, 0.8)

	plan := d.Plan(ModeRespond)
	if strings.Contains(plan.Directive, "emotion") {
		t.Errorf("neutral emotion should not be mentioned, got %q", plan.Directive)
	}

	tracker.Set(EmotionSassy)
	plan = d.Plan(ModeRespond)
	if !strings.Contains(plan.Directive, string(EmotionSassy)) {
		t.Errorf("Directive should carry the current emotion, got %q", plan.Directive)
	}
}

func TestDirectorUnknownModeDefaultsToRespond(t *testing.T) {
	d := NewDirector(NewState(), NewTracker(), 0)
	plan := d.Plan(Mode("bogus"))
	if plan.Mode != ModeRespond {
		t.Errorf("Mode = %v, want respond fallback", plan.Mode)
	}
}

func TestDirectorTemperatureFollowsMood(t *testing.T) {
	state := NewState()
	d := NewDirector(state, NewTracker(), 0.8)
	base := d.Plan(ModeRespond).Temperature

	for i := 0; i < 20; i++ {
		state.Observe(EventIgnored)
	}
	raised := d.Plan(ModeRespond).Temperature
	if raised <= base {
		t.Errorf("temperature should rise with boredom and sass: %v -> %v", base, raised)
	}
}
