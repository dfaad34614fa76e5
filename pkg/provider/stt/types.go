package stt

import "time"

// Transcript is the result of transcribing one utterance.
type Transcript struct {
	// Text is the recognized text, trimmed of leading/trailing whitespace.
	Text string

	// Confidence is the recognizer's overall confidence in [0, 1].
	// Zero when the backend does not report one.
	Confidence float64

	// Words carries per-word detail when the backend provides it; nil
	// otherwise.
	Words []WordDetail

	// Duration is the audio duration the recognizer processed.
	Duration time.Duration
}

// WordDetail is per-word timing and confidence.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// IsEmpty reports whether the transcript carries no usable text.
func (t Transcript) IsEmpty() bool {
	return t.Text == ""
}
