package audio

import (
	"context"
	"testing"
	"time"

	"github.com/mumeinosato/kira-ai/pkg/provider/vad"
	vadmock "github.com/mumeinosato/kira-ai/pkg/provider/vad/mock"
)

const (
	testRate    = 16000
	testFrameMs = 30
)

func testFrames(n int) []Frame {
	frames := make([]Frame, n)
	data := make([]byte, testRate*testFrameMs/1000*2)
	for i := range frames {
		frames[i] = Frame{
			Data:       data,
			SampleRate: testRate,
			Channels:   1,
			Timestamp:  time.Duration(i*testFrameMs) * time.Millisecond,
		}
	}
	return frames
}

func newSegmenter(t *testing.T, sess *vadmock.Session, pause time.Duration) *Segmenter {
	t.Helper()
	s, err := NewSegmenter(&vadmock.Engine{Session: sess}, SegmenterConfig{
		SampleRate:       testRate,
		FrameMs:          testFrameMs,
		PauseThreshold:   pause,
		SpeechThreshold:  0.5,
		SilenceThreshold: 0.3,
	})
	if err != nil {
		t.Fatalf("NewSegmenter: %v", err)
	}
	return s
}

func speechEvents(n int) []vad.Event {
	evs := make([]vad.Event, 0, n)
	evs = append(evs, vad.Event{Type: vad.SpeechStart, Probability: 0.9})
	for i := 1; i < n; i++ {
		evs = append(evs, vad.Event{Type: vad.SpeechContinue, Probability: 0.9})
	}
	return evs
}

func TestSegmenterEmitsUtteranceAfterPause(t *testing.T) {
	// 4 speech frames, then silence. Pause threshold of 60 ms = 2 frames,
	// so the utterance closes on the 3rd silent frame.
	sess := &vadmock.Session{Events: speechEvents(4)}
	seg := newSegmenter(t, sess, 60*time.Millisecond)

	in := make(chan Frame)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	utts, _ := seg.Run(ctx, in, nil)

	go func() {
		for _, f := range testFrames(10) {
			in <- f
		}
		close(in)
	}()

	u, ok := <-utts
	if !ok {
		t.Fatal("utterance channel closed without emitting")
	}

	// 4 speech frames + 3 silence-tail frames = 7 frames of PCM.
	wantBytes := 7 * testRate * testFrameMs / 1000 * 2
	if len(u.PCM) != wantBytes {
		t.Errorf("utterance PCM = %d bytes, want %d", len(u.PCM), wantBytes)
	}
	if u.SampleRate != testRate {
		t.Errorf("sample rate = %d, want %d", u.SampleRate, testRate)
	}
	wantDur := 7 * testFrameMs * time.Millisecond
	if u.Duration != wantDur {
		t.Errorf("duration = %v, want %v", u.Duration, wantDur)
	}
}

func TestSegmenterNoUtteranceWithoutSpeech(t *testing.T) {
	sess := &vadmock.Session{} // script exhausted immediately: all silence
	seg := newSegmenter(t, sess, 60*time.Millisecond)

	in := make(chan Frame)
	utts, _ := seg.Run(context.Background(), in, nil)

	go func() {
		for _, f := range testFrames(20) {
			in <- f
		}
		close(in)
	}()

	if u, ok := <-utts; ok {
		t.Fatalf("unexpected utterance of %d bytes", len(u.PCM))
	}
}

func TestSegmenterBargeIn(t *testing.T) {
	sess := &vadmock.Session{Events: speechEvents(3)}
	seg := newSegmenter(t, sess, 60*time.Millisecond)

	in := make(chan Frame)
	busy := func() bool { return true }
	utts, interrupts := seg.Run(context.Background(), in, busy)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, f := range testFrames(3) {
			in <- f
		}
		close(in)
	}()

	select {
	case <-interrupts:
	case <-time.After(time.Second):
		t.Fatal("no interrupt signalled on barge-in")
	}
	<-done

	if u, ok := <-utts; ok {
		t.Fatalf("speech while busy must not produce an utterance, got %d bytes", len(u.PCM))
	}
	if sess.ResetCalls == 0 {
		t.Error("vad session was not reset during barge-in")
	}
}

func TestSegmenterContextCancel(t *testing.T) {
	seg := newSegmenter(t, &vadmock.Session{}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan Frame)
	utts, _ := seg.Run(ctx, in, nil)

	cancel()

	select {
	case _, ok := <-utts:
		if ok {
			t.Fatal("expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("utterance channel not closed after cancel")
	}
}
