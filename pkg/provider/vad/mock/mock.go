// Package mock provides test doubles for the vad package interfaces.
//
// Use Engine to verify that sessions are created with the expected Config.
// Use Session to script Event responses and inspect the frames that were
// submitted for processing.
package mock

import (
	"sync"

	"github.com/mumeinosato/kira-ai/pkg/provider/vad"
)

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by NewSession. If nil, NewSession
	// returns a new default Session.
	Session vad.SessionHandle

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records the Config of every NewSession call in order.
	NewSessionCalls []vad.Config
}

var _ vad.Engine = (*Engine)(nil)

// NewSession records the call and returns Session, NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Session is a mock implementation of vad.SessionHandle. It replays Events in
// order; once the script is exhausted every frame reports silence.
type Session struct {
	mu sync.Mutex

	// Events is the scripted sequence of results returned by ProcessFrame.
	Events []vad.Event

	// ProcessErr, if non-nil, is returned by every ProcessFrame call.
	ProcessErr error

	// Frames records a copy of every frame passed to ProcessFrame.
	Frames [][]byte

	// ResetCalls counts invocations of Reset.
	ResetCalls int

	// Closed reports whether Close has been called.
	Closed bool

	next int
}

var _ vad.SessionHandle = (*Session)(nil)

// ProcessFrame records the frame and returns the next scripted event.
func (s *Session) ProcessFrame(frame []byte) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.Frames = append(s.Frames, cp)
	if s.ProcessErr != nil {
		return vad.Event{}, s.ProcessErr
	}
	if s.next < len(s.Events) {
		ev := s.Events[s.next]
		s.next++
		return ev, nil
	}
	return vad.Event{Type: vad.Silence}, nil
}

// Reset increments ResetCalls.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCalls++
}

// Close marks the session closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}
