package audio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mumeinosato/kira-ai/pkg/provider/vad"
)

// SegmenterConfig configures a [Segmenter].
type SegmenterConfig struct {
	// SampleRate is the PCM sample rate of incoming frames in Hz.
	SampleRate int

	// FrameMs is the duration of each incoming frame in milliseconds.
	FrameMs int

	// PauseThreshold is how much trailing silence ends an utterance.
	// Defaults to 1 second if zero.
	PauseThreshold time.Duration

	// SpeechThreshold and SilenceThreshold are passed through to the VAD
	// session. See [vad.Config].
	SpeechThreshold  float64
	SilenceThreshold float64

	// UtteranceBuffer is the capacity of the emitted utterance channel.
	// Defaults to 4 if zero.
	UtteranceBuffer int
}

// Segmenter assembles microphone frames into complete utterances using a VAD
// session to gate recording.
//
// While the bot is busy speaking (the busy callback reports true), detected
// speech is not recorded; instead a barge-in interrupt is signalled so the
// caller can cut playback short. This mirrors how a human conversation
// partner stops talking when interrupted.
type Segmenter struct {
	cfg         SegmenterConfig
	session     vad.SessionHandle
	silentLimit int
}

// NewSegmenter creates a Segmenter backed by a fresh VAD session from engine.
func NewSegmenter(engine vad.Engine, cfg SegmenterConfig) (*Segmenter, error) {
	if cfg.PauseThreshold <= 0 {
		cfg.PauseThreshold = time.Second
	}
	if cfg.UtteranceBuffer <= 0 {
		cfg.UtteranceBuffer = 4
	}

	session, err := engine.NewSession(vad.Config{
		SampleRate:       cfg.SampleRate,
		FrameSizeMs:      cfg.FrameMs,
		SpeechThreshold:  cfg.SpeechThreshold,
		SilenceThreshold: cfg.SilenceThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("segmenter: create vad session: %w", err)
	}

	silentLimit := int(cfg.PauseThreshold.Milliseconds()) / cfg.FrameMs
	if silentLimit < 1 {
		silentLimit = 1
	}

	return &Segmenter{
		cfg:         cfg,
		session:     session,
		silentLimit: silentLimit,
	}, nil
}

// Run consumes frames until ctx is done or the frames channel closes, and
// returns two channels:
//
//   - utterances: completed speech segments, each closed off by
//     PauseThreshold of trailing silence.
//   - interrupts: one signal per barge-in, i.e. speech detected while busy()
//     reported true. Signals are dropped rather than queued when the caller
//     is not draining the channel.
//
// Both channels are closed when Run's internal goroutine exits. The busy
// callback must be safe for concurrent use; pass nil when barge-in handling
// is not needed.
func (s *Segmenter) Run(ctx context.Context, frames <-chan Frame, busy func() bool) (<-chan Utterance, <-chan struct{}) {
	utterances := make(chan Utterance, s.cfg.UtteranceBuffer)
	interrupts := make(chan struct{}, 1)

	go func() {
		defer close(utterances)
		defer close(interrupts)
		defer s.session.Close()

		var (
			recording   bool
			buf         []byte
			start       time.Duration
			silentCount int
		)

		for {
			var (
				frame Frame
				ok    bool
			)
			select {
			case <-ctx.Done():
				return
			case frame, ok = <-frames:
				if !ok {
					return
				}
			}

			ev, err := s.session.ProcessFrame(frame.Data)
			if err != nil {
				slog.Warn("segmenter: vad frame rejected", "err", err)
				continue
			}
			isSpeech := ev.Type == vad.SpeechStart || ev.Type == vad.SpeechContinue

			// Barge-in: the bot is mid-reply and the speaker started talking.
			if busy != nil && busy() {
				if isSpeech {
					select {
					case interrupts <- struct{}{}:
					default:
					}
				}
				// Drop any partial recording; it predates the interruption.
				recording = false
				buf = nil
				silentCount = 0
				s.session.Reset()
				continue
			}

			switch {
			case isSpeech:
				if !recording {
					recording = true
					start = frame.Timestamp
					slog.Debug("segmenter: recording started", "at", start)
				}
				buf = append(buf, frame.Data...)
				silentCount = 0

			case recording:
				// Keep the silence tail so the utterance does not end abruptly.
				buf = append(buf, frame.Data...)
				silentCount++
				if silentCount > s.silentLimit {
					u := Utterance{
						PCM:        buf,
						SampleRate: s.cfg.SampleRate,
						Channels:   1,
						Start:      start,
						Duration:   pcmDuration(len(buf), s.cfg.SampleRate),
					}
					select {
					case utterances <- u:
					case <-ctx.Done():
						return
					}
					recording = false
					buf = nil
					silentCount = 0
				}
			}
		}
	}()

	return utterances, interrupts
}

// pcmDuration returns the playback duration of n bytes of 16-bit mono PCM.
func pcmDuration(n, sampleRate int) time.Duration {
	samples := n / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
