// Package vtube drives a VTube Studio avatar over the VTubeStudioPublicAPI
// WebSocket protocol.
//
// The client performs the two-step plugin handshake (token request followed
// by authentication) on Connect and then injects MouthOpen parameter values
// while speech plays, so the avatar's mouth tracks the synthesized audio.
package vtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	defaultServerURL = "ws://localhost:8001"

	apiName    = "VTubeStudioPublicAPI"
	apiVersion = "1.0"

	mouthOpenParam = "MouthOpen"
)

// request is the envelope for every message sent to VTube Studio.
type request struct {
	APIName     string `json:"apiName"`
	APIVersion  string `json:"apiVersion"`
	RequestID   string `json:"requestID"`
	MessageType string `json:"messageType"`
	Data        any    `json:"data,omitempty"`
}

// response is the envelope for every message received from VTube Studio.
type response struct {
	MessageType string          `json:"messageType"`
	RequestID   string          `json:"requestID"`
	Data        json.RawMessage `json:"data"`
}

type tokenRequestData struct {
	PluginName      string `json:"pluginName"`
	PluginDeveloper string `json:"pluginDeveloper"`
}

type tokenResponseData struct {
	AuthenticationToken string `json:"authenticationToken"`
}

type authRequestData struct {
	AuthenticationToken string `json:"authenticationToken"`
	PluginName          string `json:"pluginName"`
	PluginDeveloper     string `json:"pluginDeveloper"`
}

type authResponseData struct {
	Authenticated bool   `json:"authenticated"`
	Reason        string `json:"reason"`
}

type parameterValue struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

type injectParameterData struct {
	FaceFound       bool             `json:"faceFound"`
	Mode            string           `json:"mode"`
	ParameterValues []parameterValue `json:"parameterValues"`
}

type apiErrorData struct {
	ErrorID int    `json:"errorID"`
	Message string `json:"message"`
}

// Client is a VTube Studio plugin connection. Connect must succeed before
// SetMouthOpen or Speak are used. Safe for concurrent use; writes are
// serialized.
type Client struct {
	serverURL       string
	pluginName      string
	pluginDeveloper string
	token           string

	mu   sync.Mutex
	conn *websocket.Conn
}

// Option is a functional option for Client.
type Option func(*Client)

// WithToken supplies a previously issued authentication token, skipping the
// token request step (and the in-app permission popup) on Connect.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithServerURL overrides the default VTube Studio endpoint.
func WithServerURL(u string) Option {
	return func(c *Client) {
		c.serverURL = u
	}
}

// New creates a Client identifying itself to VTube Studio as the given
// plugin. Both names are required; they appear in the permission popup the
// user approves in the app.
func New(pluginName, pluginDeveloper string, opts ...Option) (*Client, error) {
	if pluginName == "" {
		return nil, errors.New("vtube: plugin name must not be empty")
	}
	if pluginDeveloper == "" {
		return nil, errors.New("vtube: plugin developer must not be empty")
	}
	c := &Client{
		serverURL:       defaultServerURL,
		pluginName:      pluginName,
		pluginDeveloper: pluginDeveloper,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Connect dials VTube Studio and completes the plugin handshake. Without a
// stored token it first requests one, which makes the app show a permission
// popup the user must accept.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("vtube: dial %s: %w", c.serverURL, err)
	}
	conn.SetReadLimit(1 << 20)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if c.token == "" {
		token, err := c.requestToken(ctx)
		if err != nil {
			conn.Close(websocket.StatusInternalError, "handshake failed")
			return err
		}
		c.token = token
	}

	if err := c.authenticate(ctx); err != nil {
		conn.Close(websocket.StatusInternalError, "handshake failed")
		return err
	}

	slog.Info("vtube studio connected", "url", c.serverURL, "plugin", c.pluginName)
	return nil
}

// Token returns the authentication token issued by VTube Studio. Persist it
// so later sessions can use [WithToken] and skip the permission popup.
func (c *Client) Token() string {
	return c.token
}

func (c *Client) requestToken(ctx context.Context) (string, error) {
	resp, err := c.roundTrip(ctx, request{
		APIName:     apiName,
		APIVersion:  apiVersion,
		RequestID:   "authToken",
		MessageType: "AuthenticationTokenRequest",
		Data: tokenRequestData{
			PluginName:      c.pluginName,
			PluginDeveloper: c.pluginDeveloper,
		},
	})
	if err != nil {
		return "", fmt.Errorf("vtube: token request: %w", err)
	}
	if resp.MessageType != "AuthenticationTokenResponse" {
		return "", apiError("token request", resp)
	}

	var data tokenResponseData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", fmt.Errorf("vtube: decode token response: %w", err)
	}
	if data.AuthenticationToken == "" {
		return "", errors.New("vtube: empty authentication token")
	}
	return data.AuthenticationToken, nil
}

func (c *Client) authenticate(ctx context.Context) error {
	resp, err := c.roundTrip(ctx, request{
		APIName:     apiName,
		APIVersion:  apiVersion,
		RequestID:   "authRequest",
		MessageType: "AuthenticationRequest",
		Data: authRequestData{
			AuthenticationToken: c.token,
			PluginName:          c.pluginName,
			PluginDeveloper:     c.pluginDeveloper,
		},
	})
	if err != nil {
		return fmt.Errorf("vtube: authentication: %w", err)
	}
	if resp.MessageType != "AuthenticationResponse" {
		return apiError("authentication", resp)
	}

	var data authResponseData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("vtube: decode authentication response: %w", err)
	}
	if !data.Authenticated {
		return fmt.Errorf("vtube: authentication rejected: %s", data.Reason)
	}
	return nil
}

// SetMouthOpen injects a MouthOpen parameter value in [0, 1].
func (c *Client) SetMouthOpen(ctx context.Context, value float64) error {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	return c.send(ctx, request{
		APIName:     apiName,
		APIVersion:  apiVersion,
		RequestID:   "inject-open",
		MessageType: "InjectParameterDataRequest",
		Data: injectParameterData{
			FaceFound: false,
			Mode:      "set",
			ParameterValues: []parameterValue{
				{ID: mouthOpenParam, Value: value},
			},
		},
	})
}

// Speak plays the lip-sync envelope for text against the avatar, holding
// each frame's mouth value for its duration and closing the mouth at the
// end. Cancelling ctx stops mid-envelope; the mouth is still closed before
// returning.
func (c *Client) Speak(ctx context.Context, text string) error {
	frames := Envelope(text)
	timer := time.NewTimer(0)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for _, f := range frames {
		select {
		case <-ctx.Done():
			c.closeMouth()
			return ctx.Err()
		default:
		}
		if err := c.SetMouthOpen(ctx, f.Value); err != nil {
			c.closeMouth()
			return err
		}
		timer.Reset(f.Hold)
		select {
		case <-ctx.Done():
			c.closeMouth()
			return ctx.Err()
		case <-timer.C:
		}
	}
	c.closeMouth()
	return nil
}

// closeMouth resets MouthOpen to 0 on a best-effort basis, detached from
// the (possibly cancelled) speak context.
func (c *Client) closeMouth() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.SetMouthOpen(ctx, 0); err != nil {
		slog.Debug("vtube: failed to close mouth", "err", err)
	}
}

// Close terminates the WebSocket connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "shutting down")
}

// send writes one request. Injection messages do not wait for a reply; the
// app acknowledges asynchronously and errors surface as APIError frames on
// the next round trip.
func (c *Client) send(ctx context.Context, req request) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("vtube: not connected")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("vtube: encode %s: %w", req.MessageType, err)
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("vtube: write %s: %w", req.MessageType, err)
	}
	return nil
}

// roundTrip writes one request and reads the next response frame.
func (c *Client) roundTrip(ctx context.Context, req request) (*response, error) {
	if err := c.send(ctx, req); err != nil {
		return nil, err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, errors.New("vtube: not connected")
	}

	_, payload, err := conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("vtube: read response: %w", err)
	}
	var resp response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("vtube: decode response: %w", err)
	}
	return &resp, nil
}

// apiError renders an unexpected response, extracting the message from
// APIError frames when present.
func apiError(op string, resp *response) error {
	if resp.MessageType == "APIError" {
		var data apiErrorData
		if err := json.Unmarshal(resp.Data, &data); err == nil {
			return fmt.Errorf("vtube: %s: api error %d: %s", op, data.ErrorID, data.Message)
		}
	}
	return fmt.Errorf("vtube: %s: unexpected response %q", op, resp.MessageType)
}
