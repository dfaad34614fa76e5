// Package mock provides a test double for the audio.Platform interface.
//
// The Platform replays scripted capture frames and records every PCM chunk
// delivered to Play, so pipeline tests can run without any audio device.
package mock

import (
	"context"
	"sync"

	"github.com/mumeinosato/kira-ai/pkg/audio"
)

// Platform is a mock implementation of audio.Platform.
type Platform struct {
	mu sync.Mutex

	// CaptureFrames is the scripted frame sequence replayed by Capture.
	CaptureFrames []audio.Frame

	// CaptureErr, if non-nil, is returned by Capture.
	CaptureErr error

	// PlayErr, if non-nil, is returned by Play after draining the channel.
	PlayErr error

	// Played records every PCM chunk received by Play, across all calls.
	Played [][]byte

	// PlayCalls counts invocations of Play.
	PlayCalls int

	// Closed reports whether Close has been called.
	Closed bool
}

var _ audio.Platform = (*Platform)(nil)

// Capture replays CaptureFrames on a fresh channel and closes it.
func (p *Platform) Capture(ctx context.Context) (<-chan audio.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CaptureErr != nil {
		return nil, p.CaptureErr
	}
	out := make(chan audio.Frame, len(p.CaptureFrames))
	for _, f := range p.CaptureFrames {
		out <- f
	}
	close(out)
	return out, nil
}

// Play drains pcm, recording every chunk, until the channel closes or ctx is
// cancelled.
func (p *Platform) Play(ctx context.Context, pcm <-chan []byte) error {
	p.mu.Lock()
	p.PlayCalls++
	p.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-pcm:
			if !ok {
				p.mu.Lock()
				defer p.mu.Unlock()
				return p.PlayErr
			}
			cp := make([]byte, len(chunk))
			copy(cp, chunk)
			p.mu.Lock()
			p.Played = append(p.Played, cp)
			p.mu.Unlock()
		}
	}
}

// Close marks the platform closed.
func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// PlayedBytes returns the total number of PCM bytes delivered to Play.
func (p *Platform) PlayedBytes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Played {
		n += len(c)
	}
	return n
}
