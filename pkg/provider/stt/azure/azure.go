// Package azure provides an STT provider backed by the Azure Speech service
// short-audio REST API.
//
// Each completed utterance is wrapped in a WAV container and submitted as one
// recognition request to the regional endpoint. The short-audio API accepts
// up to 60 seconds of audio per request, which comfortably covers a spoken
// utterance bounded by a pause.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mumeinosato/kira-ai/pkg/audio"
	"github.com/mumeinosato/kira-ai/pkg/provider/stt"
)

const defaultLanguage = "en-US"

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the recognition language as a BCP-47 tag (e.g., "en-US",
// "ja-JP"). Defaults to "en-US".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithHTTPClient replaces the default HTTP client (30 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// withEndpoint overrides the regional endpoint URL. Test hook.
func withEndpoint(url string) Option {
	return func(p *Provider) {
		p.endpoint = url
	}
}

// Provider implements stt.Provider against the Azure Speech short-audio
// recognition endpoint. It is safe for concurrent use.
type Provider struct {
	key        string
	endpoint   string
	language   string
	httpClient *http.Client
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
		key:        key,
		endpoint:   fmt.Sprintf("https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1", region),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// recognitionResponse mirrors the detailed-format response body.
type recognitionResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	Duration          int64  `json:"Duration"` // 100-ns ticks
	NBest             []struct {
		Confidence float64 `json:"Confidence"`
		Display    string  `json:"Display"`
	} `json:"NBest"`
}

// Transcribe submits one utterance for recognition. A clean "NoMatch" result
// (pure silence or unintelligible audio) returns an empty Transcript, not an
// error.
func (p *Provider) Transcribe(ctx context.Context, u audio.Utterance) (stt.Transcript, error) {
	if len(u.PCM) == 0 {
		return stt.Transcript{}, errors.New("azure: empty utterance")
	}

	wav := audio.EncodeWAV(u.PCM, u.SampleRate, u.Channels)

	url := fmt.Sprintf("%s?language=%s&format=detailed", p.endpoint, p.language)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(wav))
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("azure: create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/wav; codecs=audio/pcm; samplerate=%d", u.SampleRate))
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("azure: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return stt.Transcript{}, fmt.Errorf("azure: recognition returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result recognitionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return stt.Transcript{}, fmt.Errorf("azure: parse JSON response: %w", err)
	}

	switch result.RecognitionStatus {
	case "Success":
	case "NoMatch", "InitialSilenceTimeout":
		return stt.Transcript{Duration: u.Duration}, nil
	default:
		return stt.Transcript{}, fmt.Errorf("azure: recognition status %q", result.RecognitionStatus)
	}

	t := stt.Transcript{
		Text:     strings.TrimSpace(result.DisplayText),
		Duration: time.Duration(result.Duration) * 100 * time.Nanosecond,
	}
	if t.Duration == 0 {
		t.Duration = u.Duration
	}
	if len(result.NBest) > 0 {
		t.Confidence = result.NBest[0].Confidence
		if t.Text == "" {
			t.Text = strings.TrimSpace(result.NBest[0].Display)
		}
	}
	return t, nil
}
