// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/mumeinosato/kira-ai/pkg/provider/tts"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Provider is a mock tts.Provider. Each text fragment consumed from the text
// channel produces one PCM chunk on the audio channel: either the next
// element of AudioChunks, or the fragment's bytes when AudioChunks is
// exhausted (so tests can assert on what was "spoken").
type Provider struct {
	mu sync.Mutex

	// AudioChunks, when non-empty, is emitted in order, one chunk per
	// consumed text fragment.
	AudioChunks [][]byte

	// StreamErr, if non-nil, is returned by SynthesizeStream.
	StreamErr error

	// Voices is returned by ListVoices.
	Voices []tts.VoiceProfile

	// ListErr, if non-nil, is returned by ListVoices.
	ListErr error

	// Synthesized records every text fragment consumed, across all streams.
	Synthesized []string

	// StreamCalls counts SynthesizeStream invocations.
	StreamCalls int

	next int
}

// SynthesizeStream consumes the text channel and echoes one audio chunk per
// fragment.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	p.StreamCalls++
	if p.StreamErr != nil {
		err := p.StreamErr
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Unlock()

	audioCh := make(chan []byte, 16)
	go func() {
		defer close(audioCh)
		for {
			select {
			case fragment, ok := <-text:
				if !ok {
					return
				}
				p.mu.Lock()
				p.Synthesized = append(p.Synthesized, fragment)
				var chunk []byte
				if p.next < len(p.AudioChunks) {
					chunk = p.AudioChunks[p.next]
					p.next++
				} else {
					chunk = []byte(fragment)
				}
				p.mu.Unlock()
				select {
				case audioCh <- chunk:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return audioCh, nil
}

// ListVoices returns Voices, ListErr.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Voices, p.ListErr
}

// SynthesizedText returns a copy of all fragments consumed so far.
func (p *Provider) SynthesizedText() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Synthesized))
	copy(out, p.Synthesized)
	return out
}
