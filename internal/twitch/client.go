// Package twitch implements a minimal Twitch chat client speaking IRC over
// WebSocket. Incoming channel messages accumulate in a bounded buffer that
// the conversation engine drains once per turn; outgoing messages are
// rate-limited to stay under the chat flood limits.
package twitch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	// defaultServerURL is the Twitch IRC WebSocket gateway.
	defaultServerURL = "wss://irc-ws.chat.twitch.tv:443"

	// defaultSayInterval keeps sends under the 20 messages / 30 s limit
	// for regular users.
	defaultSayInterval = 1500 * time.Millisecond

	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithBufferCapacity sets the unseen-message buffer capacity.
func WithBufferCapacity(n int) Option {
	return func(c *Client) {
		c.buf = NewBuffer(n)
	}
}

// WithSayInterval sets the minimum delay between outgoing messages.
func WithSayInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.sayInterval = d
		}
	}
}

// WithOnMessage registers a callback invoked for every chat message as it
// arrives, in addition to buffering. The callback runs on the read loop
// goroutine and must not block.
func WithOnMessage(fn func(ChatMessage)) Option {
	return func(c *Client) {
		c.onMessage = fn
	}
}

// withServerURL overrides the IRC gateway. Used in tests.
func withServerURL(url string) Option {
	return func(c *Client) {
		c.serverURL = url
	}
}

// withRetryPolicy shrinks the reconnect budget. Used in tests.
func withRetryPolicy(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.backoff = backoff
	}
}

// Client connects to a single Twitch channel's chat.
//
// Run owns the connection: it logs in, joins the channel, answers server
// PINGs, and reconnects with exponential backoff when the connection drops.
// Say and Drain may be called from other goroutines.
type Client struct {
	serverURL   string
	nick        string
	token       string
	channel     string
	sayInterval time.Duration
	maxRetries  int
	backoff     time.Duration
	maxBackoff  time.Duration
	onMessage   func(ChatMessage)

	buf *Buffer

	mu      sync.Mutex
	conn    *websocket.Conn
	lastSay time.Time
}

// NewClient creates a chat client for the given channel. token is the OAuth
// token; a missing "oauth:" prefix is added automatically. The leading '#'
// on channel is optional.
func NewClient(nick, token, channel string, opts ...Option) (*Client, error) {
	if nick == "" || token == "" || channel == "" {
		return nil, fmt.Errorf("twitch: nick, token and channel are required")
	}
	if !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	c := &Client{
		serverURL:   defaultServerURL,
		nick:        strings.ToLower(nick),
		token:       token,
		channel:     strings.ToLower(strings.TrimPrefix(channel, "#")),
		sayInterval: defaultSayInterval,
		maxRetries:  defaultMaxRetries,
		backoff:     defaultBackoff,
		maxBackoff:  defaultMaxBackoff,
		buf:         NewBuffer(0),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Run connects and processes chat until ctx is cancelled. Dropped
// connections are retried with exponential backoff; Run returns an error
// only when reconnection fails maxRetries times in a row. A connection that
// made it through login resets the counter, so a long stream survives any
// number of spread-out disconnects.
func (c *Client) Run(ctx context.Context) error {
	currentBackoff := c.backoff
	failures := 0

	for {
		established, err := c.connectAndRead(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if established {
			failures = 0
			currentBackoff = c.backoff
		}
		failures++
		if failures > c.maxRetries {
			return fmt.Errorf("twitch: giving up after %d failed connections: %w", failures, err)
		}

		slog.Warn("chat connection lost, reconnecting",
			"channel", c.channel,
			"attempt", failures,
			"backoff", currentBackoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(currentBackoff):
		}

		currentBackoff *= 2
		if currentBackoff > c.maxBackoff {
			currentBackoff = c.maxBackoff
		}
	}
}

// connectAndRead dials the gateway, logs in, joins the channel and reads
// until the connection drops or ctx is cancelled. The boolean reports
// whether the session got past login, so Run can tell a dropped connection
// from one that never came up.
func (c *Client) connectAndRead(ctx context.Context) (bool, error) {
	conn, _, err := websocket.Dial(ctx, c.serverURL, nil)
	if err != nil {
		return false, fmt.Errorf("twitch: dial %s: %w", c.serverURL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Message bursts from busy chats can exceed the default read limit.
	conn.SetReadLimit(1 << 20)

	login := strings.Join([]string{
		"CAP REQ :twitch.tv/tags",
		"PASS " + c.token,
		"NICK " + c.nick,
		"JOIN #" + c.channel,
	}, "\r\n")
	if err := conn.Write(ctx, websocket.MessageText, []byte(login)); err != nil {
		return false, fmt.Errorf("twitch: login: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	slog.Info("connected to chat", "channel", c.channel, "nick", c.nick)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return true, fmt.Errorf("twitch: read: %w", err)
		}
		for _, line := range strings.Split(string(data), "\r\n") {
			c.handleLine(ctx, conn, line)
		}
	}
}

// handleLine dispatches a single IRC line.
func (c *Client) handleLine(ctx context.Context, conn *websocket.Conn, line string) {
	msg, ok := parseLine(line)
	if !ok {
		return
	}

	switch msg.command {
	case "PING":
		pong := "PONG :" + msg.text
		if err := conn.Write(ctx, websocket.MessageText, []byte(pong)); err != nil {
			slog.Warn("pong failed", "error", err)
		}
	case "PRIVMSG":
		chat, ok := toChatMessage(msg, time.Now())
		if !ok {
			return
		}
		// Ignore our own messages echoed back by the server.
		if strings.EqualFold(chat.User, c.nick) {
			return
		}
		c.buf.Add(chat)
		if c.onMessage != nil {
			c.onMessage(chat)
		}
	case "NOTICE":
		slog.Info("chat notice", "text", msg.text)
	case "RECONNECT":
		slog.Info("server requested reconnect")
	}
}

// Say sends a message to the channel, waiting out the rate limit if a
// previous send was too recent.
func (c *Client) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	wait := c.sayInterval - time.Since(c.lastSay)
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("twitch: not connected")
	}

	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	line := fmt.Sprintf("PRIVMSG #%s :%s", c.channel, text)
	if err := conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
		return fmt.Errorf("twitch: say: %w", err)
	}

	c.mu.Lock()
	c.lastSay = time.Now()
	c.mu.Unlock()
	return nil
}

// Drain returns and clears all chat messages received since the last call.
func (c *Client) Drain() []ChatMessage {
	return c.buf.Drain()
}

// Buffered reports how many unseen messages are waiting.
func (c *Client) Buffered() int {
	return c.buf.Len()
}

// Dropped reports how many messages were evicted from the buffer.
func (c *Client) Dropped() int {
	return c.buf.Dropped()
}

// Joined reports whether the client currently holds a live connection with
// the channel joined.
func (c *Client) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}
