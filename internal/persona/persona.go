// Package persona defines who the streamer character is and how she feels.
//
// It covers four concerns:
//
//   - [Profile]: the static identity: name, system prompt, the proper-noun
//     lexicon for transcript correction, and banned phrases.
//   - [Tracker] and [Classifier]: the current display emotion and how it is
//     derived from generated responses.
//   - [State]: the slow-moving mood engine (boredom, energy, sass, focus)
//     that skews generation temperature and prompt hints over a stream.
//   - [Director] and [Enforcer]: turning mode plus mood into a concrete
//     generation plan, and keeping responses in character.
package persona

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Profile is the static persona configuration, loaded at startup.
type Profile struct {
	// Name is the character's name, also used to strip self-prefixes
	// from generated responses.
	Name string

	// SystemPrompt is the base personality description injected at the
	// top of every LLM prompt.
	SystemPrompt string

	// Lexicon lists proper nouns (the character's name, game titles,
	// regular viewers) used to snap misheard words in transcripts.
	Lexicon []string

	// BannedPhrases are case-insensitive substrings that must never
	// appear in a response. The enforcer rejects and regenerates.
	BannedPhrases []string
}

// Load builds a Profile for name, reading the system prompt from promptPath
// when set. A missing or empty prompt file falls back to the built-in
// prompt; the error is logged, not returned, so a broken file never takes
// the stream down.
func Load(name, promptPath string, lexicon, bannedPhrases []string) Profile {
	if name == "" {
		name = "Kira"
	}
	prompt := fallbackPrompt(name)

	if promptPath != "" {
		data, err := os.ReadFile(promptPath)
		switch {
		case err != nil:
			slog.Warn("persona prompt file unreadable, using fallback",
				"path", promptPath, "error", err)
		case strings.TrimSpace(string(data)) == "":
			slog.Warn("persona prompt file empty, using fallback", "path", promptPath)
		default:
			prompt = strings.TrimSpace(string(data))
		}
	}

	lex := append([]string{name}, lexicon...)

	return Profile{
		Name:          name,
		SystemPrompt:  prompt,
		Lexicon:       dedupe(lex),
		BannedPhrases: bannedPhrases,
	}
}

// fallbackPrompt is used when no prompt file is configured or readable.
func fallbackPrompt(name string) string {
	return fmt.Sprintf(`You are %[1]s, a witty AI VTuber live on stream. You are sharp, playful and a little sassy, but never mean. Keep responses short and conversational, like spoken banter. Never mention being an AI language model, never break character, and never use emoji or stage directions.`, name)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
