package vtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// vtsServer is an in-process VTube Studio endpoint that answers the plugin
// handshake and records injected parameter values.
type vtsServer struct {
	t *testing.T

	mu       sync.Mutex
	injected []float64
	authed   bool

	rejectAuth bool
	srv        *httptest.Server
}

func newVTSServer(t *testing.T) *vtsServer {
	s := &vtsServer{t: t}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var req request
			if err := json.Unmarshal(data, &req); err != nil {
				t.Errorf("decode request: %v", err)
				return
			}
			if err := s.handle(ctx, conn, req); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *vtsServer) handle(ctx context.Context, conn *websocket.Conn, req request) error {
	reply := func(messageType string, data any) error {
		payload, err := json.Marshal(map[string]any{
			"apiName":     apiName,
			"apiVersion":  apiVersion,
			"requestID":   req.RequestID,
			"messageType": messageType,
			"data":        data,
		})
		if err != nil {
			s.t.Errorf("encode reply: %v", err)
			return err
		}
		return conn.Write(ctx, websocket.MessageText, payload)
	}

	switch req.MessageType {
	case "AuthenticationTokenRequest":
		return reply("AuthenticationTokenResponse", map[string]any{
			"authenticationToken": "issued-token",
		})
	case "AuthenticationRequest":
		if s.rejectAuth {
			return reply("AuthenticationResponse", map[string]any{
				"authenticated": false,
				"reason":        "user denied the plugin",
			})
		}
		s.mu.Lock()
		s.authed = true
		s.mu.Unlock()
		return reply("AuthenticationResponse", map[string]any{"authenticated": true})
	case "InjectParameterDataRequest":
		raw, err := json.Marshal(req.Data)
		if err != nil {
			s.t.Errorf("re-encode inject data: %v", err)
			return err
		}
		var data injectParameterData
		if err := json.Unmarshal(raw, &data); err != nil {
			s.t.Errorf("decode inject data: %v", err)
			return err
		}
		s.mu.Lock()
		for _, pv := range data.ParameterValues {
			if pv.ID == mouthOpenParam {
				s.injected = append(s.injected, pv.Value)
			}
		}
		s.mu.Unlock()
		return nil
	default:
		s.t.Errorf("unexpected message type %q", req.MessageType)
		return nil
	}
}

func (s *vtsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *vtsServer) values() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.injected...)
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestConnect_HandshakeIssuesToken(t *testing.T) {
	server := newVTSServer(t)

	client, err := New("KiraAI", "mumeinosato", WithServerURL(server.url()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if client.Token() != "issued-token" {
		t.Errorf("Token() = %q, want %q", client.Token(), "issued-token")
	}
}

func TestConnect_StoredTokenSkipsTokenRequest(t *testing.T) {
	server := newVTSServer(t)

	client, err := New("KiraAI", "mumeinosato",
		WithServerURL(server.url()),
		WithToken("stored-token"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if client.Token() != "stored-token" {
		t.Errorf("Token() = %q, want stored token kept", client.Token())
	}
}

func TestConnect_AuthenticationRejected(t *testing.T) {
	server := newVTSServer(t)
	server.rejectAuth = true

	client, err := New("KiraAI", "mumeinosato", WithServerURL(server.url()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = client.Connect(context.Background())
	if err == nil {
		t.Fatal("expected error when authentication is rejected")
	}
	if !strings.Contains(err.Error(), "user denied the plugin") {
		t.Errorf("err = %v, want rejection reason included", err)
	}
}

func TestSetMouthOpen_ClampsAndInjects(t *testing.T) {
	server := newVTSServer(t)

	client, err := New("KiraAI", "mumeinosato", WithServerURL(server.url()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	for _, v := range []float64{0.8, 1.7, -0.2} {
		if err := client.SetMouthOpen(context.Background(), v); err != nil {
			t.Fatalf("SetMouthOpen(%v): %v", v, err)
		}
	}

	waitFor(t, func() bool { return len(server.values()) == 3 })
	got := server.values()
	want := []float64{0.8, 1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("injected[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSpeak_EndsWithClosedMouth(t *testing.T) {
	server := newVTSServer(t)

	client, err := New("KiraAI", "mumeinosato", WithServerURL(server.url()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := client.Speak(context.Background(), "hi"); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	// "h" consonant, "i" vowel, then the final close.
	waitFor(t, func() bool { return len(server.values()) == 3 })
	got := server.values()
	want := []float64{consonantOpen, vowelOpen, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("injected[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSpeak_CancelledContextStops(t *testing.T) {
	server := newVTSServer(t)

	client, err := New("KiraAI", "mumeinosato", WithServerURL(server.url()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = client.Speak(ctx, "a very long sentence that would take a while to mouth")
	if err == nil {
		t.Fatal("expected context error from cancelled Speak")
	}

	// The mouth still gets closed on the way out.
	waitFor(t, func() bool {
		vals := server.values()
		return len(vals) > 0 && vals[len(vals)-1] == 0
	})
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "dev"); err == nil {
		t.Error("expected error for empty plugin name")
	}
	if _, err := New("plugin", ""); err == nil {
		t.Error("expected error for empty developer")
	}
}

func TestSetMouthOpen_NotConnected(t *testing.T) {
	client, err := New("KiraAI", "mumeinosato")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.SetMouthOpen(context.Background(), 0.5); err == nil {
		t.Error("expected error when not connected")
	}
}
