package config_test

import (
	"testing"

	"github.com/mumeinosato/kira-ai/internal/config"
)

func TestDiffConfigs(t *testing.T) {
	base := func() *config.Config {
		cfg := &config.Config{}
		cfg.Server.LogLevel = config.LogInfo
		cfg.Persona.Name = "Kira"
		cfg.Persona.PromptFile = "configs/prompt.txt"
		cfg.Persona.Lexicon = []string{"Kira", "Elden Ring"}
		cfg.Persona.Proactive.Chance = 0.8
		return cfg
	}

	t.Run("no changes", func(t *testing.T) {
		d := config.DiffConfigs(base(), base())
		if !d.Empty() {
			t.Errorf("Diff = %+v, want empty", d)
		}
	})

	t.Run("log level", func(t *testing.T) {
		updated := base()
		updated.Server.LogLevel = config.LogDebug
		d := config.DiffConfigs(base(), updated)
		if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
			t.Errorf("Diff = %+v, want log level change to debug", d)
		}
	})

	t.Run("lexicon entry", func(t *testing.T) {
		updated := base()
		updated.Persona.Lexicon = append(updated.Persona.Lexicon, "Doom")
		d := config.DiffConfigs(base(), updated)
		if !d.PersonaChanged {
			t.Errorf("Diff = %+v, want persona change", d)
		}
	})

	t.Run("proactive knob", func(t *testing.T) {
		updated := base()
		updated.Persona.Proactive.Chance = 0.2
		d := config.DiffConfigs(base(), updated)
		if !d.ProactiveChanged {
			t.Errorf("Diff = %+v, want proactive change", d)
		}
		if d.PersonaChanged {
			t.Errorf("Diff = %+v, proactive knob must not flag the persona", d)
		}
	})
}
