package energy

import (
	"encoding/binary"
	"testing"

	"github.com/mumeinosato/kira-ai/pkg/provider/vad"
)

// pcmFrame builds a 16 kHz / 30 ms mono frame with every sample set to amp.
func pcmFrame(amp int16) []byte {
	const samples = 16000 * 30 / 1000
	frame := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(amp))
	}
	return frame
}

func newTestSession(t *testing.T) vad.SessionHandle {
	t.Helper()
	s, err := New().NewSession(vad.Config{
		SampleRate:       16000,
		FrameSizeMs:      30,
		SpeechThreshold:  0.02,
		SilenceThreshold: 0.01,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestAggressivenessRange(t *testing.T) {
	for level := 0; level <= 3; level++ {
		speech, silence, err := Aggressiveness(level)
		if err != nil {
			t.Fatalf("Aggressiveness(%d): %v", level, err)
		}
		if silence >= speech {
			t.Errorf("level %d: silence %.3f >= speech %.3f", level, silence, speech)
		}
	}
	if _, _, err := Aggressiveness(4); err == nil {
		t.Error("Aggressiveness(4) should fail")
	}
}

func TestNewSessionValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  vad.Config
	}{
		{"zero sample rate", vad.Config{FrameSizeMs: 30, SpeechThreshold: 0.5, SilenceThreshold: 0.3}},
		{"zero frame size", vad.Config{SampleRate: 16000, SpeechThreshold: 0.5, SilenceThreshold: 0.3}},
		{"speech threshold too high", vad.Config{SampleRate: 16000, FrameSizeMs: 30, SpeechThreshold: 1.5, SilenceThreshold: 0.3}},
		{"silence above speech", vad.Config{SampleRate: 16000, FrameSizeMs: 30, SpeechThreshold: 0.3, SilenceThreshold: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New().NewSession(tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSpeechStartAndEnd(t *testing.T) {
	s := newTestSession(t)
	defer s.Close()

	loud := pcmFrame(3000) // well above the 0.02 speech threshold
	quiet := pcmFrame(10)  // near silence

	ev, err := s.ProcessFrame(loud)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if ev.Type != vad.SpeechStart {
		t.Fatalf("first loud frame = %v, want speech-start", ev.Type)
	}

	ev, _ = s.ProcessFrame(loud)
	if ev.Type != vad.SpeechContinue {
		t.Fatalf("second loud frame = %v, want speech-continue", ev.Type)
	}

	// Quiet frames inside the hangover window are still speech.
	ev, _ = s.ProcessFrame(quiet)
	if ev.Type != vad.SpeechContinue {
		t.Fatalf("first quiet frame = %v, want speech-continue (hangover)", ev.Type)
	}
	ev, _ = s.ProcessFrame(quiet)
	if ev.Type != vad.SpeechContinue {
		t.Fatalf("second quiet frame = %v, want speech-continue (hangover)", ev.Type)
	}

	// Third consecutive quiet frame exhausts the default hangover of 3.
	ev, _ = s.ProcessFrame(quiet)
	if ev.Type != vad.SpeechEnd {
		t.Fatalf("third quiet frame = %v, want speech-end", ev.Type)
	}

	ev, _ = s.ProcessFrame(quiet)
	if ev.Type != vad.Silence {
		t.Fatalf("after end = %v, want silence", ev.Type)
	}
}

func TestHangoverResetByLoudFrame(t *testing.T) {
	s := newTestSession(t)
	defer s.Close()

	loud := pcmFrame(3000)
	quiet := pcmFrame(10)

	s.ProcessFrame(loud)
	s.ProcessFrame(quiet)
	s.ProcessFrame(quiet)
	// A loud frame resets the quiet streak.
	s.ProcessFrame(loud)

	ev, _ := s.ProcessFrame(quiet)
	if ev.Type != vad.SpeechContinue {
		t.Fatalf("quiet after reset = %v, want speech-continue", ev.Type)
	}
}

func TestResetClearsState(t *testing.T) {
	s := newTestSession(t)
	defer s.Close()

	s.ProcessFrame(pcmFrame(3000))
	s.Reset()

	ev, _ := s.ProcessFrame(pcmFrame(10))
	if ev.Type != vad.Silence {
		t.Fatalf("after reset = %v, want silence", ev.Type)
	}
}

func TestWrongFrameSize(t *testing.T) {
	s := newTestSession(t)
	defer s.Close()

	if _, err := s.ProcessFrame(make([]byte, 10)); err == nil {
		t.Error("expected frame size error, got nil")
	}
}

func TestClosedSession(t *testing.T) {
	s := newTestSession(t)
	s.Close()
	if _, err := s.ProcessFrame(pcmFrame(0)); err == nil {
		t.Error("expected error on closed session, got nil")
	}
}
