package persona

import "fmt"

// Mode identifies why the character is about to speak.
type Mode string

const (
	// ModeRespond answers a direct voice interaction.
	ModeRespond Mode = "respond"

	// ModeChatReact reacts to accumulated chat messages during a lull.
	ModeChatReact Mode = "chat_react"

	// ModeThought is an unprompted remark when nothing is happening.
	ModeThought Mode = "thought"
)

// ActionPlan tells the conversation engine how to generate the next
// response: what to do, with what temperature and length budget, and under
// which per-turn directive.
type ActionPlan struct {
	Mode        Mode
	Directive   string
	Temperature float64
	MaxTokens   int
}

// Director turns the current emotion and mood into a concrete [ActionPlan]
// for each speaking opportunity.
type Director struct {
	state   *State
	tracker *Tracker
	baseTmp float64
}

// NewDirector creates a Director. baseTemperature is the configured
// generation temperature before any mood adjustment; zero uses 0.8.
func NewDirector(state *State, tracker *Tracker, baseTemperature float64) *Director {
	if baseTemperature <= 0 {
		baseTemperature = 0.8
	}
	return &Director{state: state, tracker: tracker, baseTmp: baseTemperature}
}

// Plan builds the generation plan for the given mode.
func (d *Director) Plan(mode Mode) ActionPlan {
	temp := d.baseTmp + d.state.TemperatureModifier()
	if temp < 0.1 {
		temp = 0.1
	}
	if temp > 1.5 {
		temp = 1.5
	}

	plan := ActionPlan{
		Mode:        mode,
		Temperature: temp,
	}

	switch mode {
	case ModeChatReact:
		plan.Directive = "React briefly to the chat messages above. Pick the most interesting one; do not answer each individually."
		plan.MaxTokens = 120
	case ModeThought:
		plan.Directive = "Nothing is happening on stream. Say something unprompted: an observation, a random thought or a question to chat. One or two sentences."
		plan.MaxTokens = 80
	default:
		plan.Mode = ModeRespond
		plan.Directive = "Reply to the last message in character."
		plan.MaxTokens = 200
	}

	if emotion := d.tracker.Current(); emotion != EmotionNeutral {
		plan.Directive += fmt.Sprintf(" Your current emotion is %s; let it colour your tone.", emotion)
	}
	if hint := d.state.PromptHint(); hint != "" {
		plan.Directive += " " + hint
	}

	return plan
}
