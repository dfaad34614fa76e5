package persona

import (
	"strings"
	"sync"
	"time"
)

// Event is something that happened on stream that nudges the mood engine.
type Event int

const (
	// EventUserSpoke is a voice interaction from the streamer.
	EventUserSpoke Event = iota

	// EventChatMessage is an incoming chat message.
	EventChatMessage

	// EventSpoke is the character finishing a spoken response.
	EventSpoke

	// EventIgnored is a proactive thought or idle remark that got no
	// reaction.
	EventIgnored
)

// MoodSnapshot is a point-in-time copy of the mood axes plus a derived
// human-readable label.
type MoodSnapshot struct {
	Boredom float64
	Energy  float64
	Sass    float64
	Focus   float64
	Label   string
}

// State is the slow-moving mood engine. Four axes in [0, 1] drift over time
// and react to stream events; they skew generation temperature and add a
// one-line hint to prompts so long quiet streams feel different from busy
// ones.
//
// Safe for concurrent use.
type State struct {
	mu      sync.Mutex
	boredom float64
	energy  float64
	sass    float64
	focus   float64
}

// NewState creates a State with fresh-stream defaults: energetic, focused,
// moderately sassy, not yet bored.
func NewState() *State {
	return &State{
		boredom: 0.2,
		energy:  0.7,
		sass:    0.5,
		focus:   0.8,
	}
}

// Observe applies the mood effect of a single event.
func (s *State) Observe(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event {
	case EventUserSpoke:
		s.boredom = clamp(s.boredom - 0.3)
		s.energy = clamp(s.energy + 0.1)
		s.focus = clamp(s.focus + 0.1)
	case EventChatMessage:
		s.boredom = clamp(s.boredom - 0.15)
		s.energy = clamp(s.energy + 0.05)
		s.sass = clamp(s.sass + 0.05)
	case EventSpoke:
		s.energy = clamp(s.energy - 0.05)
	case EventIgnored:
		s.boredom = clamp(s.boredom + 0.1)
		s.sass = clamp(s.sass + 0.1)
		s.focus = clamp(s.focus - 0.05)
	}
}

// Tick applies time-based drift for an idle period: boredom creeps up,
// energy and focus wind down. Called from the idle loop.
func (s *State) Tick(idle time.Duration) {
	if idle <= 0 {
		return
	}
	// Scale drift to the idle period, with a full effect at one minute.
	scale := idle.Seconds() / 60
	if scale > 1 {
		scale = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.boredom = clamp(s.boredom + 0.1*scale)
	s.energy = clamp(s.energy - 0.05*scale)
	s.focus = clamp(s.focus - 0.05*scale)
}

// TemperatureModifier returns an additive adjustment for generation
// temperature derived from the current mood. High sass and boredom loosen
// the output; high focus tightens it. The result is in roughly [-0.2, 0.3].
func (s *State) TemperatureModifier() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return 0.2*s.sass + 0.15*s.boredom - 0.2*s.focus
}

// Snapshot returns a copy of the mood axes with a derived label.
func (s *State) Snapshot() MoodSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MoodSnapshot{
		Boredom: s.boredom,
		Energy:  s.energy,
		Sass:    s.sass,
		Focus:   s.focus,
		Label:   moodLabel(s.boredom, s.energy, s.sass),
	}
}

// PromptHint returns a one-line description of the current mood for
// inclusion in the system prompt, or "" when the mood is unremarkable.
func (s *State) PromptHint() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hints []string
	if s.boredom > 0.7 {
		hints = append(hints, "You are getting bored and restless.")
	}
	if s.energy < 0.3 {
		hints = append(hints, "Your energy is low; keep it mellow.")
	} else if s.energy > 0.8 {
		hints = append(hints, "You are full of energy right now.")
	}
	if s.sass > 0.75 {
		hints = append(hints, "You are feeling extra sassy.")
	}
	return strings.Join(hints, " ")
}

func moodLabel(boredom, energy, sass float64) string {
	switch {
	case boredom > 0.7:
		return "bored"
	case sass > 0.75:
		return "sassy"
	case energy > 0.8:
		return "hyped"
	case energy < 0.3:
		return "sleepy"
	default:
		return "chill"
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
