// Package vad defines the Engine interface for Voice Activity Detection
// backends.
//
// A VAD engine wraps a frame-level speech detector and surfaces it as a
// stateful, per-stream session. Each session maintains its own smoothing
// state so that multiple concurrent audio streams can be processed
// independently.
//
// VAD is synchronous: ProcessFrame returns immediately with a detection
// result, so it can sit in the low-latency stage that gates utterance
// assembly.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// PCM frames passed to ProcessFrame. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds.
	// ProcessFrame returns an error if the supplied frame does not match.
	FrameSizeMs int

	// SpeechThreshold is the probability above which a frame is classified as
	// speech. Range: [0.0, 1.0].
	SpeechThreshold float64

	// SilenceThreshold is the probability below which a frame is classified
	// as silence and an active speech segment is considered ended.
	// Must be ≤ SpeechThreshold.
	SilenceThreshold float64
}

// SessionHandle represents an active VAD session for a single audio stream.
//
// A SessionHandle should not be shared between goroutines unless the
// implementation explicitly guarantees concurrent safety.
type SessionHandle interface {
	// ProcessFrame analyses a single audio frame and returns the detection
	// result. The frame must be raw 16-bit little-endian PCM at the
	// SampleRate and FrameSizeMs configured when the session was created.
	// It must not block.
	ProcessFrame(frame []byte) (Event, error)

	// Reset clears all accumulated detection state without closing the
	// session. Use this when the audio stream is interrupted so stale state
	// from the previous segment does not affect subsequent frames.
	Reset()

	// Close releases all resources associated with the session. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions. Implementations must be safe for
// concurrent use: multiple goroutines may call NewSession simultaneously to
// create independent sessions.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration.
	// Returns an error if the configuration is invalid (unsupported sample
	// rate, frame size, or threshold out of range).
	NewSession(cfg Config) (SessionHandle, error)
}
