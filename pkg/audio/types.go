package audio

import "time"

// Frame represents a single fixed-duration frame of captured audio.
// Frames are the atomic unit of the input pipeline: captured from the
// microphone platform, classified by VAD, and assembled into utterances.
type Frame struct {
	// Data is 16-bit signed little-endian PCM.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for STT input).
	SampleRate int

	// Channels: 1 for mono (STT input).
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Utterance is a complete stretch of speech assembled by the [Segmenter]:
// everything between a voice-activity trigger and the configured pause
// threshold of trailing silence.
type Utterance struct {
	// PCM is the concatenated 16-bit little-endian PCM of all frames in the
	// utterance, including the trailing silence tail.
	PCM []byte

	// SampleRate and Channels mirror the source frames.
	SampleRate int
	Channels   int

	// Start is the capture timestamp of the first frame.
	Start time.Duration

	// Duration is the total audio length of the utterance.
	Duration time.Duration
}
