package conversation

import (
	"regexp"
	"strings"
)

// endTokenPattern matches model end-of-sequence markers that leak into the
// text with some local backends.
var endTokenPattern = regexp.MustCompile(`</?s>`)

// CleanResponse strips generation artefacts from a raw model reply before it
// is spoken: leading "Name:" self-echoes on any line, end-of-sequence
// markers, and asterisks left over from markdown emphasis or stage
// directions.
func CleanResponse(name, text string) string {
	if name != "" {
		prefix := regexp.MustCompile(`(?im)^\s*` + regexp.QuoteMeta(name) + `:\s*`)
		text = prefix.ReplaceAllString(text, "")
	}
	text = endTokenPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "*", "")
	return strings.TrimSpace(text)
}
