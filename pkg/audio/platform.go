// Package audio defines the audio transport types and the capture/playback
// platform abstraction for the Kira voice pipeline.
//
// Device handling itself is treated as an opaque platform concern: the
// [Platform] interface is small enough that any backend (a loopback test
// double, an OS capture bridge, a network source) can satisfy it. The
// pipeline-side logic that is worth testing, VAD-gated utterance assembly
// and barge-in detection, lives in [Segmenter].
package audio

import "context"

// Platform abstracts the audio input/output device pair.
//
// Implementations must be safe for concurrent use. Capture and Play may be
// active at the same time (the bot listens while it speaks so that barge-in
// interruption works).
type Platform interface {
	// Capture opens the input stream and returns a channel of fixed-duration
	// PCM frames. The channel is closed when ctx is cancelled or the device
	// is closed. Returns an error if the stream cannot be opened.
	Capture(ctx context.Context) (<-chan Frame, error)

	// Play renders raw PCM chunks from the audio channel to the output device
	// in order. It blocks until the channel is closed and all audio has been
	// rendered, or until ctx is cancelled; cancellation stops playback
	// immediately, which is how barge-in interruption cuts the bot off
	// mid-sentence.
	Play(ctx context.Context, pcm <-chan []byte) error

	// Close releases the underlying devices. Safe to call more than once.
	Close() error
}
