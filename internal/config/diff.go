package config

import "slices"

// Diff describes what changed between two configs. Only fields that can be
// safely hot-reloaded mid-stream are tracked; provider or memory changes
// need a restart.
type Diff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PersonaChanged covers the prompt file path, lexicon and banned
	// phrases: everything the profile is rebuilt from.
	PersonaChanged bool

	// ProactiveChanged covers the idle behaviour knobs.
	ProactiveChanged bool
}

// Empty reports whether nothing hot-reloadable changed.
func (d Diff) Empty() bool {
	return !d.LogLevelChanged && !d.PersonaChanged && !d.ProactiveChanged
}

// DiffConfigs compares old and new configs and returns what changed.
func DiffConfigs(old, new *Config) Diff {
	d := Diff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Persona.Name != new.Persona.Name ||
		old.Persona.PromptFile != new.Persona.PromptFile ||
		old.Persona.BaselineEmotion != new.Persona.BaselineEmotion ||
		!slices.Equal(old.Persona.Lexicon, new.Persona.Lexicon) ||
		!slices.Equal(old.Persona.BannedPhrases, new.Persona.BannedPhrases) {
		d.PersonaChanged = true
	}

	if old.Persona.Proactive != new.Persona.Proactive {
		d.ProactiveChanged = true
	}

	return d
}
