// Package mock provides a scripted stt.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/mumeinosato/kira-ai/pkg/audio"
	"github.com/mumeinosato/kira-ai/pkg/provider/stt"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider is a mock stt.Provider. Transcripts are returned in order; once
// exhausted, an empty Transcript is returned. All fields guarded by mu.
type Provider struct {
	mu sync.Mutex

	// Transcripts is the scripted sequence of results.
	Transcripts []stt.Transcript

	// Err, when non-nil, is returned by every Transcribe call.
	Err error

	// Calls records every utterance passed to Transcribe.
	Calls []audio.Utterance

	next int
}

// Transcribe records the call and returns the next scripted transcript.
func (p *Provider) Transcribe(ctx context.Context, u audio.Utterance) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, u)
	if p.Err != nil {
		return stt.Transcript{}, p.Err
	}
	if p.next >= len(p.Transcripts) {
		return stt.Transcript{}, nil
	}
	t := p.Transcripts[p.next]
	p.next++
	return t, nil
}

// CallCount returns the number of Transcribe calls made so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
