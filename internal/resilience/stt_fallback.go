package resilience

import (
	"context"

	"github.com/mumeinosato/kira-ai/pkg/audio"
	"github.com/mumeinosato/kira-ai/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover, e.g. the
// in-process whisper.cpp model first with the Azure Speech API as a backup.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional STT provider.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe runs the utterance through the first healthy provider.
func (f *STTFallback) Transcribe(ctx context.Context, utterance audio.Utterance) (stt.Transcript, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.Transcript, error) {
		return p.Transcribe(ctx, utterance)
	})
}
