package vtube

import "time"

// Frame is one step of a mouth movement envelope: hold MouthOpen at Value
// for Hold before advancing to the next frame.
type Frame struct {
	Value float64
	Hold  time.Duration
}

const (
	vowelOpen     = 0.8
	consonantOpen = 0.2

	vowelHold     = 100 * time.Millisecond
	consonantHold = 50 * time.Millisecond
)

// Envelope derives a per-character mouth movement envelope from the text
// being spoken. Vowels open the mouth wide and hold longer, consonants open
// it slightly, everything else (spaces, punctuation) closes it. The result
// is a rough but convincing sync against streamed TTS audio.
func Envelope(text string) []Frame {
	frames := make([]Frame, 0, len(text))
	for _, r := range text {
		switch {
		case isVowel(r):
			frames = append(frames, Frame{Value: vowelOpen, Hold: vowelHold})
		case isConsonant(r):
			frames = append(frames, Frame{Value: consonantOpen, Hold: consonantHold})
		default:
			frames = append(frames, Frame{Value: 0, Hold: consonantHold})
		}
	}
	return frames
}

func isVowel(r rune) bool {
	switch lower(r) {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func isConsonant(r rune) bool {
	l := lower(r)
	return l >= 'a' && l <= 'z' && !isVowel(l)
}

func lower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
