package vad

// Event represents a voice activity detection result for a single audio frame.
type Event struct {
	// Type is the detection result.
	Type EventType

	// Probability is the speech probability score (0.0–1.0).
	Probability float64
}

// EventType enumerates VAD detection states.
type EventType int

const (
	// SpeechStart indicates speech has just begun.
	SpeechStart EventType = iota

	// SpeechContinue indicates ongoing speech.
	SpeechContinue

	// SpeechEnd indicates speech has just ended.
	SpeechEnd

	// Silence indicates no speech detected.
	Silence
)

// String returns the human-readable name of the event type.
func (t EventType) String() string {
	switch t {
	case SpeechStart:
		return "speech-start"
	case SpeechContinue:
		return "speech-continue"
	case SpeechEnd:
		return "speech-end"
	case Silence:
		return "silence"
	default:
		return "unknown"
	}
}
