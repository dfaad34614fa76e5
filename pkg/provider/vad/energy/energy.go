// Package energy implements an RMS-energy Voice Activity Detection engine.
//
// The detector computes the root-mean-square amplitude of each 16-bit PCM
// frame, normalises it to full scale, and compares it against the configured
// speech/silence thresholds. A short hangover window smooths the transitions
// so that brief dips inside a word do not end the speech segment.
//
// Energy-based detection is deliberately simple: it needs no model file, runs
// in microseconds per frame, and is good enough to gate a single-speaker
// microphone stream. The [Aggressiveness] helper maps the 0–3 scale familiar
// from WebRTC-style detectors onto threshold pairs.
package energy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/mumeinosato/kira-ai/pkg/provider/vad"
)

// fullScale is the maximum absolute amplitude of 16-bit signed PCM.
const fullScale = 32768.0

// defaultHangoverFrames is the number of consecutive sub-threshold frames
// tolerated before an active speech segment is declared ended.
const defaultHangoverFrames = 3

// Engine implements [vad.Engine] with RMS energy detection.
// The zero value is ready to use.
type Engine struct {
	// HangoverFrames overrides the silence tolerance inside a speech segment.
	// Zero means use the default of 3 frames.
	HangoverFrames int
}

var _ vad.Engine = (*Engine)(nil)

// New returns an energy VAD engine with default smoothing.
func New() *Engine {
	return &Engine{}
}

// Aggressiveness maps a 0–3 aggressiveness level to a (speech, silence)
// threshold pair in normalised RMS units. Higher levels require louder input
// to trigger, reducing false positives at the cost of clipping quiet speech.
func Aggressiveness(level int) (speech, silence float64, err error) {
	switch level {
	case 0:
		return 0.006, 0.004, nil
	case 1:
		return 0.010, 0.006, nil
	case 2:
		return 0.016, 0.010, nil
	case 3:
		return 0.025, 0.015, nil
	default:
		return 0, 0, fmt.Errorf("energy vad: aggressiveness %d out of range [0, 3]", level)
	}
}

// NewSession implements [vad.Engine].
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SampleRate <= 0 {
		return nil, errors.New("energy vad: sample rate must be positive")
	}
	if cfg.FrameSizeMs <= 0 {
		return nil, errors.New("energy vad: frame size must be positive")
	}
	if cfg.SpeechThreshold <= 0 || cfg.SpeechThreshold > 1 {
		return nil, fmt.Errorf("energy vad: speech threshold %.3f out of range (0, 1]", cfg.SpeechThreshold)
	}
	if cfg.SilenceThreshold <= 0 || cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("energy vad: silence threshold %.3f must be in (0, speech threshold]", cfg.SilenceThreshold)
	}

	hangover := e.HangoverFrames
	if hangover <= 0 {
		hangover = defaultHangoverFrames
	}

	// 16-bit mono PCM: 2 bytes per sample.
	frameBytes := cfg.SampleRate * cfg.FrameSizeMs / 1000 * 2

	return &session{
		cfg:        cfg,
		frameBytes: frameBytes,
		hangover:   hangover,
	}, nil
}

// session holds the per-stream detection state.
type session struct {
	cfg        vad.Config
	frameBytes int
	hangover   int

	active      bool
	quietStreak int
	closed      bool
}

var errClosed = errors.New("energy vad: session is closed")

// ProcessFrame implements [vad.SessionHandle].
func (s *session) ProcessFrame(frame []byte) (vad.Event, error) {
	if s.closed {
		return vad.Event{}, errClosed
	}
	if len(frame) != s.frameBytes {
		return vad.Event{}, fmt.Errorf("energy vad: frame is %d bytes, want %d", len(frame), s.frameBytes)
	}

	p := rms(frame) / fullScale

	switch {
	case !s.active && p >= s.cfg.SpeechThreshold:
		s.active = true
		s.quietStreak = 0
		return vad.Event{Type: vad.SpeechStart, Probability: p}, nil

	case s.active && p >= s.cfg.SilenceThreshold:
		s.quietStreak = 0
		return vad.Event{Type: vad.SpeechContinue, Probability: p}, nil

	case s.active:
		s.quietStreak++
		if s.quietStreak >= s.hangover {
			s.active = false
			s.quietStreak = 0
			return vad.Event{Type: vad.SpeechEnd, Probability: p}, nil
		}
		// Inside the hangover window, still counts as speech.
		return vad.Event{Type: vad.SpeechContinue, Probability: p}, nil

	default:
		return vad.Event{Type: vad.Silence, Probability: p}, nil
	}
}

// Reset implements [vad.SessionHandle].
func (s *session) Reset() {
	s.active = false
	s.quietStreak = 0
}

// Close implements [vad.SessionHandle].
func (s *session) Close() error {
	s.closed = true
	return nil
}

// rms computes the root-mean-square amplitude of 16-bit little-endian PCM.
func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(n))
}
