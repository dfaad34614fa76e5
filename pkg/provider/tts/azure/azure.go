// Package azure provides a TTS provider backed by the Azure Speech service
// REST API. It implements the tts.Provider interface.
//
// Text fragments are synthesised one request at a time as they arrive on the
// text channel, each wrapped in an SSML document carrying the configured
// prosody (pitch and rate). The service returns raw 16-bit PCM which is
// forwarded to the audio channel unchanged.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mumeinosato/kira-ai/pkg/provider/tts"
)

const (
	defaultVoice        = "en-US-AshleyNeural"
	defaultOutputFormat = "raw-16khz-16bit-mono-pcm"
	defaultLanguage     = "en-US"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the azure Provider.
type Option func(*Provider)

// WithOutputFormat sets the X-Microsoft-OutputFormat header value. Only raw
// PCM formats make sense for the playback pipeline; the default is
// "raw-16khz-16bit-mono-pcm".
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithProsody sets the SSML prosody pitch and rate applied to every request
// (e.g., "+15%", "1.1"). Empty values omit the prosody element.
func WithProsody(pitch, rate string) Option {
	return func(p *Provider) {
		p.pitch = pitch
		p.rate = rate
	}
}

// WithHTTPClient replaces the default HTTP client (30 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// withEndpoints overrides the synthesis and voice-list URLs. Test hook.
func withEndpoints(synth, voices string) Option {
	return func(p *Provider) {
		p.synthEndpoint = synth
		p.voicesEndpoint = voices
	}
}

// Provider implements tts.Provider against the Azure Speech synthesis
// endpoint. It is safe for concurrent use.
type Provider struct {
	key            string
	synthEndpoint  string
	voicesEndpoint string
	outputFormat   string
	pitch          string
	rate           string
	httpClient     *http.Client
}

// New creates a Provider for the given subscription key and service region
// (e.g., "eastus", "japaneast"). Both must be non-empty.
func New(key, region string, opts ...Option) (*Provider, error) {
	if key == "" {
		return nil, errors.New("azure: subscription key must not be empty")
	}
	if region == "" {
		return nil, errors.New("azure: region must not be empty")
	}
	p := &Provider{
		key:            key,
		synthEndpoint:  fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		voicesEndpoint: fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/voices/list", region),
		outputFormat:   defaultOutputFormat,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// SynthesizeStream consumes text fragments and emits raw PCM for each one.
// Fragments are synthesised strictly in order so sentence audio never
// interleaves. The audio channel is closed when the text channel closes or
// ctx is cancelled; a failed request closes the channel early.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	voiceName := voice.ID
	if voiceName == "" {
		voiceName = defaultVoice
	}

	audioCh := make(chan []byte, 16)

	go func() {
		defer close(audioCh)
		for {
			select {
			case fragment, ok := <-text:
				if !ok {
					return
				}
				if strings.TrimSpace(fragment) == "" {
					continue
				}
				pcm, err := p.synthesize(ctx, fragment, voiceName)
				if err != nil {
					return
				}
				select {
				case audioCh <- pcm:
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

// synthesize performs one SSML synthesis request and returns the raw PCM body.
func (p *Provider) synthesize(ctx context.Context, text, voiceName string) ([]byte, error) {
	ssml := buildSSML(text, voiceName, p.pitch, p.rate)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.synthEndpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("azure: create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", p.outputFormat)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("azure: synthesis returned HTTP %d", resp.StatusCode)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure: read audio body: %w", err)
	}
	return pcm, nil
}

// buildSSML constructs the SSML document for one fragment. pitch and rate
// wrap the text in a prosody element when set.
func buildSSML(text, voiceName, pitch, rate string) string {
	var inner bytes.Buffer
	xml.EscapeText(&inner, []byte(text))
	escaped := inner.String()

	var b strings.Builder
	fmt.Fprintf(&b, `<speak version='1.0' xml:lang='%s'>`, defaultLanguage)
	fmt.Fprintf(&b, `<voice name='%s'>`, voiceName)
	if pitch != "" || rate != "" {
		b.WriteString("<prosody")
		if pitch != "" {
			fmt.Fprintf(&b, ` pitch='%s'`, pitch)
		}
		if rate != "" {
			fmt.Fprintf(&b, ` rate='%s'`, rate)
		}
		b.WriteString(">")
		b.WriteString(escaped)
		b.WriteString("</prosody>")
	} else {
		b.WriteString(escaped)
	}
	b.WriteString("</voice></speak>")
	return b.String()
}

// ---- ListVoices ----

// azureVoice is one entry from the voices/list endpoint.
type azureVoice struct {
	ShortName string `json:"ShortName"`
	LocalName string `json:"LocalName"`
	Locale    string `json:"Locale"`
	Gender    string `json:"Gender"`
	VoiceType string `json:"VoiceType"`
}

// ListVoices returns all neural voices available in the configured region.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("azure: list voices: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("azure: list voices: unexpected status %d", resp.StatusCode)
	}

	var voices []azureVoice
	if err := json.NewDecoder(resp.Body).Decode(&voices); err != nil {
		return nil, fmt.Errorf("azure: list voices decode: %w", err)
	}

	profiles := make([]tts.VoiceProfile, 0, len(voices))
	for _, v := range voices {
		profiles = append(profiles, tts.VoiceProfile{
			ID:       v.ShortName,
			Name:     v.LocalName,
			Provider: "azure",
			Metadata: map[string]string{
				"locale": v.Locale,
				"gender": v.Gender,
				"type":   v.VoiceType,
			},
		})
	}
	return profiles, nil
}
