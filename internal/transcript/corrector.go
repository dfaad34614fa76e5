// Package transcript post-processes speech-to-text output before it reaches
// the language model. Its main job is snapping misheard proper nouns (the
// assistant's name, channel names, viewer handles, game titles) back to
// their canonical spelling using phonetic matching.
package transcript

import (
	"strings"

	"github.com/mumeinosato/kira-ai/internal/transcript/phonetic"
)

// Correction records a single replacement applied to a transcript.
type Correction struct {
	Original   string
	Corrected  string
	Confidence float64
}

// Matcher finds the lexicon entry most similar to a word or phrase.
// Implemented by [phonetic.Matcher].
type Matcher interface {
	Match(word string, lexicon []string) (corrected string, confidence float64, matched bool)
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithMatcher replaces the default phonetic matcher.
func WithMatcher(m Matcher) Option {
	return func(c *Corrector) {
		c.matcher = m
	}
}

// Corrector applies lexicon-based corrections to raw transcripts. It is
// read-only after construction and safe for concurrent use.
type Corrector struct {
	matcher  Matcher
	lexicon  []string
	maxWords int
}

// NewCorrector returns a Corrector that snaps words in a transcript to the
// entries of lexicon. Blank lexicon entries are dropped.
func NewCorrector(lexicon []string, opts ...Option) *Corrector {
	clean := make([]string, 0, len(lexicon))
	for _, e := range lexicon {
		if t := strings.TrimSpace(e); t != "" {
			clean = append(clean, t)
		}
	}
	c := &Corrector{
		matcher:  phonetic.New(),
		lexicon:  clean,
		maxWords: phonetic.MaxWords(clean),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct returns text with misheard lexicon entries replaced by their
// canonical form, along with a record of every replacement made.
//
// The transcript is scanned left to right. At each position the longest
// window (up to the word count of the longest lexicon entry) that matches
// an entry wins, so "eldin ring" corrects as one unit rather than two.
// Surrounding punctuation is preserved.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if len(c.lexicon) == 0 || strings.TrimSpace(text) == "" {
		return text, nil
	}

	tokens := strings.Fields(text)
	out := make([]string, 0, len(tokens))
	var corrections []Correction

	for i := 0; i < len(tokens); {
		replaced := false

		maxN := c.maxWords
		if rem := len(tokens) - i; rem < maxN {
			maxN = rem
		}

		for n := maxN; n >= 1 && !replaced; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			core, prefix, suffix := trimPunct(window)
			if core == "" {
				continue
			}

			corrected, conf, matched := c.matcher.Match(core, c.lexicon)
			if !matched {
				continue
			}

			if corrected != core {
				corrections = append(corrections, Correction{
					Original:   core,
					Corrected:  corrected,
					Confidence: conf,
				})
			}
			out = append(out, prefix+corrected+suffix)
			i += n
			replaced = true
		}

		if !replaced {
			out = append(out, tokens[i])
			i++
		}
	}

	return strings.Join(out, " "), corrections
}

// trimPunct splits leading and trailing punctuation off a token so that
// "kiera," matches "Kira" and comes back as "Kira,".
func trimPunct(s string) (core, prefix, suffix string) {
	const punct = ".,!?;:'\"()[]"
	start := 0
	for start < len(s) && strings.ContainsRune(punct, rune(s[start])) {
		start++
	}
	end := len(s)
	for end > start && strings.ContainsRune(punct, rune(s[end-1])) {
		end--
	}
	return s[start:end], s[:start], s[end:]
}
