package conversation

import "strings"

// defaultChunkLen is the target length for one synthesis chunk. Short chunks
// keep time-to-first-audio low because the TTS backend starts rendering
// before the full reply is assembled.
const defaultChunkLen = 50

// splitDelimiters are the characters a chunk may end on. Covers English
// sentence punctuation plus the Japanese full stop and comma, since the
// character code-switches mid-sentence.
const splitDelimiters = ".!?。、\n"

// SplitForSpeech cuts text into synthesis chunks of roughly maxLen runes,
// breaking after sentence delimiters. A single segment longer than maxLen is
// emitted whole rather than split mid-word. maxLen values below 1 use
// [defaultChunkLen].
func SplitForSpeech(text string, maxLen int) []string {
	if maxLen < 1 {
		maxLen = defaultChunkLen
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	segments := splitAfterDelimiters(text)

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, seg := range segments {
		segLen := len([]rune(seg))
		if currentLen > 0 && currentLen+segLen > maxLen {
			chunks = appendChunk(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(seg)
		currentLen += segLen
	}
	return appendChunk(chunks, current.String())
}

// splitAfterDelimiters splits text into segments, each ending with its
// trailing delimiter, so no punctuation is lost when chunks are reassembled.
func splitAfterDelimiters(text string) []string {
	var segments []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if strings.ContainsRune(splitDelimiters, r) {
			segments = append(segments, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}

func appendChunk(chunks []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}
