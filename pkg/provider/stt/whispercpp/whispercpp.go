// Package whispercpp provides an STT provider backed by the whisper.cpp CGO
// bindings, eliminating HTTP overhead entirely. The whisper.cpp static
// library (libwhisper.a) and headers (whisper.h) must be available at link
// time via LIBRARY_PATH and C_INCLUDE_PATH environment variables.
//
// The model is loaded once at startup and shared across all Transcribe calls;
// each call creates its own whisper context, so concurrent transcription is
// safe.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/mumeinosato/kira-ai/pkg/audio"
	"github.com/mumeinosato/kira-ai/pkg/provider/stt"
)

const defaultLanguage = "en"

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the BCP-47 language code for transcription (e.g., "en",
// "ja"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// Provider implements stt.Provider using whisper.cpp Go bindings (CGO). The
// model is loaded once and shared; contexts are created per call.
type Provider struct {
	model    whisperlib.Model
	language string
}

// New creates a Provider that loads the whisper.cpp model from the given GGUF
// file path. The caller must call Close when the provider is no longer
// needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whispercpp: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load model %q: %w", modelPath, err)
	}
	p := &Provider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe converts the utterance PCM to float32 mono samples, runs
// inference on a fresh whisper context, and returns the concatenated segment
// text.
func (p *Provider) Transcribe(ctx context.Context, u audio.Utterance) (stt.Transcript, error) {
	if len(u.PCM) == 0 {
		return stt.Transcript{}, errors.New("whispercpp: empty utterance")
	}
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whispercpp: context already cancelled: %w", err)
	}

	samples := pcmToFloat32Mono(u.PCM, u.Channels)

	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines, so create a fresh context per inference.
	wctx, err := p.model.NewContext()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whispercpp: create context: %w", err)
	}

	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("whispercpp: failed to set language, using default", "language", p.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return stt.Transcript{}, fmt.Errorf("whispercpp: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Transcript{}, fmt.Errorf("whispercpp: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return stt.Transcript{
		Text:     strings.Join(parts, " "),
		Duration: u.Duration,
	}, nil
}
