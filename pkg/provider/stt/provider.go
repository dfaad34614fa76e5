// Package stt defines the Provider interface for Speech-to-Text backends.
//
// Kira transcribes one complete utterance at a time: the audio front-end
// assembles microphone frames into a finished utterance (speech bounded by a
// pause), and the STT provider converts that utterance into text with a
// single batch call. This keeps the provider contract small; there is no
// streaming session to manage, no partial-result plumbing, just
// audio-in/text-out against a hosted or local recognition service.
//
// Implementations must be safe for concurrent use; the conversation loop may
// overlap a transcription with other provider calls.
package stt

import (
	"context"

	"github.com/mumeinosato/kira-ai/pkg/audio"
)

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts one complete utterance of PCM audio into text.
	// The utterance carries its own sample rate and channel count; the
	// provider is responsible for any container framing (e.g., WAV headers)
	// its API requires.
	//
	// Returns an error if the request fails or ctx is cancelled. A clean
	// recognition of pure silence returns an empty-text Transcript, not an
	// error.
	Transcribe(ctx context.Context, utterance audio.Utterance) (Transcript, error)
}
