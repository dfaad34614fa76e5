// Package phonetic matches misheard words against a lexicon of proper nouns
// using Double Metaphone phonetic encoding combined with Jaro-Winkler string
// similarity for ranked candidate selection.
//
// Speech recognition reliably mangles names it has never seen: "Kira"
// becomes "Keira" or "Cara", channel names and game titles fare worse. The
// matcher proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each word in the input and for each lexicon entry. If any code from the
//     input overlaps with any code from an entry, the entry becomes a
//     phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the entry with the
//     highest Jaro-Winkler similarity (case-insensitive) is selected,
//     provided its score exceeds the phonetic threshold. When no phonetic
//     candidate exists, a secondary pass tests pure Jaro-Winkler similarity
//     against all entries using a higher fuzzy threshold.
//
// Multi-word entries (e.g., "Elden Ring") are supported: the matcher
// computes phonetic codes per word and considers the best pairwise score
// across all word pairs when ranking candidates.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// minTokenLen gates out short function words ("a", "an", "to") that
	// would otherwise phonetically collide with half the lexicon.
	minTokenLen = 3
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched entry to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is a phonetic lexicon matcher. It is read-only after construction
// and therefore safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match attempts to find the lexicon entry most phonetically similar to word.
//
// word may be a single word or a space-separated phrase (n-gram). Inputs
// shorter than three characters never match. When matched is false,
// corrected equals word unchanged and confidence is 0.
func (m *Matcher) Match(word string, lexicon []string) (corrected string, confidence float64, matched bool) {
	wordLower := strings.ToLower(strings.TrimSpace(word))
	if len(lexicon) == 0 || len([]rune(wordLower)) < minTokenLen {
		return word, 0, false
	}

	wordTokens := strings.Fields(wordLower)
	inputCodes := codesForTokens(wordTokens)

	type candidate struct {
		entry    string
		score    float64
		phonetic bool
	}

	var best candidate

	for _, entry := range lexicon {
		entryLower := strings.ToLower(strings.TrimSpace(entry))
		if entryLower == "" {
			continue
		}
		entryTokens := strings.Fields(entryLower)

		entryCodes := codesForTokens(entryTokens)
		phoneticMatch := codesOverlap(inputCodes, entryCodes)

		jwScore := bestJWScore(wordTokens, entryTokens, wordLower, entryLower)

		if phoneticMatch {
			if jwScore >= m.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{entry: entry, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > best.score {
				best = candidate{entry: entry, score: jwScore, phonetic: false}
			}
		}
	}

	if best.entry != "" {
		return best.entry, best.score, true
	}
	return word, 0, false
}

// MaxWords returns the maximum number of whitespace-separated words in any
// lexicon entry. Returns 1 when the lexicon is empty.
func MaxWords(lexicon []string) int {
	max := 1
	for _, e := range lexicon {
		if n := len(strings.Fields(e)); n > max {
			max = n
		}
	}
	return max
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when the word is too short or has no
// consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the input
// and the entry using three strategies:
//
//  1. Full-string comparison ("kiera chan" vs "kira-chan").
//  2. Space-stripped comparison ("kierachan" vs "kirachan").
//  3. Direct token comparison when both sides are a single word. Applying
//     this to multi-word windows would let a single coincidental token
//     ("ring" inside "ring now") hijack an entire entry.
func bestJWScore(inputTokens, entryTokens []string, inputFull, entryFull string) float64 {
	score := matchr.JaroWinkler(inputFull, entryFull, false)

	if len(inputTokens) > 1 || len(entryTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(entryTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	if len(inputTokens) == 1 && len(entryTokens) == 1 {
		if s := matchr.JaroWinkler(inputTokens[0], entryTokens[0], false); s > score {
			score = s
		}
	}

	return score
}
