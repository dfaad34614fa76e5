package persona

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Severity grades how badly a response breaks character.
type Severity int

const (
	// SeverityWarn is logged but the response is kept.
	SeverityWarn Severity = iota

	// SeverityBlock rejects the response and triggers a regeneration.
	SeverityBlock
)

// Violation is a single rule hit found in a response.
type Violation struct {
	Rule     string
	Matched  string
	Severity Severity
}

// defaultBlockedPhrases are immersion-breaking substrings no response may
// contain, regardless of profile configuration.
var defaultBlockedPhrases = []string{
	"as an ai",
	"language model",
	"i'm just an ai",
	"i cannot assist",
	"openai",
}

// stageDirectionPattern catches roleplay asterisk actions like "*giggles*"
// that read badly when spoken aloud.
var stageDirectionPattern = regexp.MustCompile(`\*[^*]{1,60}\*`)

// RegenerateFunc produces a replacement response given a corrective
// directive describing what was wrong with the previous one.
type RegenerateFunc func(ctx context.Context, directive string) (string, error)

// Enforcer checks generated responses against character rules and drives a
// single regeneration attempt when a blocking rule is hit.
//
// Read-only after construction; safe for concurrent use.
type Enforcer struct {
	blocked  []string
	patterns []*regexp.Regexp
}

// NewEnforcer builds an Enforcer from the profile's banned phrases plus the
// built-in immersion-breaking set.
func NewEnforcer(bannedPhrases []string) *Enforcer {
	blocked := make([]string, 0, len(defaultBlockedPhrases)+len(bannedPhrases))
	blocked = append(blocked, defaultBlockedPhrases...)
	for _, p := range bannedPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			blocked = append(blocked, p)
		}
	}
	return &Enforcer{
		blocked:  blocked,
		patterns: []*regexp.Regexp{stageDirectionPattern},
	}
}

// Check returns all rule violations found in text.
func (e *Enforcer) Check(text string) []Violation {
	lower := strings.ToLower(text)
	var violations []Violation

	for _, phrase := range e.blocked {
		if strings.Contains(lower, phrase) {
			violations = append(violations, Violation{
				Rule:     "banned phrase",
				Matched:  phrase,
				Severity: SeverityBlock,
			})
		}
	}
	for _, re := range e.patterns {
		if m := re.FindString(text); m != "" {
			violations = append(violations, Violation{
				Rule:     "stage direction",
				Matched:  m,
				Severity: SeverityWarn,
			})
		}
	}
	return violations
}

// Enforce validates text and, when a blocking violation is found, asks
// regenerate for one replacement. If the replacement also violates a
// blocking rule the fallback line is returned instead, so the character
// never says the offending text aloud.
func (e *Enforcer) Enforce(ctx context.Context, text string, regenerate RegenerateFunc) (string, error) {
	violations := e.Check(text)
	if !hasBlocking(violations) {
		logWarnings(violations)
		return text, nil
	}

	slog.Warn("response broke character, regenerating", "violations", describe(violations))

	if regenerate == nil {
		return fallbackLine, nil
	}

	directive := fmt.Sprintf(
		"Your previous reply was rejected because it contained: %s. Stay fully in character and rephrase without any of that.",
		describe(violations),
	)
	retry, err := regenerate(ctx, directive)
	if err != nil {
		return "", fmt.Errorf("persona: regenerate response: %w", err)
	}

	retryViolations := e.Check(retry)
	if hasBlocking(retryViolations) {
		slog.Warn("regenerated response still broke character, using fallback",
			"violations", describe(retryViolations))
		return fallbackLine, nil
	}
	logWarnings(retryViolations)
	return retry, nil
}

// fallbackLine is spoken when two consecutive generations break character.
const fallbackLine = "Hm, lost my train of thought there. Anyway, where were we?"

func hasBlocking(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

func logWarnings(violations []Violation) {
	for _, v := range violations {
		if v.Severity == SeverityWarn {
			slog.Debug("response style warning", "rule", v.Rule, "matched", v.Matched)
		}
	}
}

func describe(violations []Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, fmt.Sprintf("%s (%q)", v.Rule, v.Matched))
	}
	return strings.Join(parts, ", ")
}
