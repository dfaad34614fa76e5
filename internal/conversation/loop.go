package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mumeinosato/kira-ai/internal/observe"
	"github.com/mumeinosato/kira-ai/internal/persona"
	"github.com/mumeinosato/kira-ai/internal/session"
	"github.com/mumeinosato/kira-ai/internal/transcript"
	"github.com/mumeinosato/kira-ai/internal/twitch"
	"github.com/mumeinosato/kira-ai/pkg/audio"
	"github.com/mumeinosato/kira-ai/pkg/provider/stt"
)

const (
	// defaultTickInterval paces the background duties: idle chat, proactive
	// thoughts and mood decay.
	defaultTickInterval = 5 * time.Second

	// defaultIdleChatDelay is the lull after which buffered chat gets a
	// reaction of its own.
	defaultIdleChatDelay = 5 * time.Second

	// defaultProactiveInterval is the total silence after which the
	// character may start talking unprompted.
	defaultProactiveInterval = 10 * time.Second

	// defaultProactiveChance is the per-tick probability of a proactive
	// thought once the interval has passed.
	defaultProactiveChance = 0.8

	// randomEmotionChance is the probability that a proactive thought
	// arrives with a freshly rolled emotion.
	randomEmotionChance = 0.3

	// minTranscriptLen drops transcription stubs ("uh", breath noise).
	minTranscriptLen = 3
)

// proactivePrompts seed unprompted remarks during long silences.
var proactivePrompts = []string{
	"Generate a brief, interesting observation or a random thought.",
	"Share something that's on your mind right now.",
	"What would you like to talk about if you could choose any topic?",
	"Share a brief spontaneous thought about the current moment.",
}

// ChatSource supplies buffered viewer messages. *twitch.Client satisfies it.
type ChatSource interface {
	Drain() []twitch.ChatMessage
	Buffered() int
}

// Loop drives the stream session: it consumes segmented utterances, feeds
// them through STT and the [Engine], reacts to chat during lulls, speaks
// unprompted when truly idle, and cancels in-flight speech on barge-in.
// One turn runs at a time.
type Loop struct {
	engine       *Engine
	stt          stt.Provider
	corrector    *transcript.Corrector
	chat         ChatSource
	state        *persona.State
	tracker      *persona.Tracker
	consolidator *session.Consolidator
	metrics      *observe.Metrics

	tickInterval      time.Duration
	idleChatDelay     time.Duration
	proactiveInterval time.Duration
	proactiveChance   float64
	proactiveEnabled  bool

	randFloat func() float64
	randIntn  func(int) int

	busy atomic.Bool

	mu           sync.Mutex
	cancelTurn   context.CancelFunc
	lastActivity time.Time
	lastIdleChat string

	// pendingDigest holds a drained chat digest whose turn was rejected. It
	// is merged into the next drain so viewer messages are never lost.
	pendingDigest string
}

// LoopConfig wires a [Loop]. Engine, STT, State and Tracker are required.
type LoopConfig struct {
	Engine  *Engine
	STT     stt.Provider
	State   *persona.State
	Tracker *persona.Tracker

	// Corrector snaps misheard proper nouns in transcripts. Optional.
	Corrector *transcript.Corrector

	// Chat supplies viewer messages. Nil disables chat handling.
	Chat ChatSource

	// Consolidator gets a final flush on shutdown. Optional.
	Consolidator *session.Consolidator

	// Metrics records STT latency and chat counters. Optional.
	Metrics *observe.Metrics

	// TickInterval, IdleChatDelay, ProactiveInterval and ProactiveChance
	// tune the background behaviour; zero values use the defaults.
	TickInterval      time.Duration
	IdleChatDelay     time.Duration
	ProactiveInterval time.Duration
	ProactiveChance   float64

	// DisableProactive turns off unprompted remarks entirely.
	DisableProactive bool
}

// LoopOption tweaks loop internals. Used in tests.
type LoopOption func(*Loop)

// withRandFloat overrides the probability source.
func withRandFloat(fn func() float64) LoopOption {
	return func(l *Loop) { l.randFloat = fn }
}

// withRandIntn overrides the prompt/emotion picker.
func withRandIntn(fn func(int) int) LoopOption {
	return func(l *Loop) { l.randIntn = fn }
}

// NewLoop validates cfg and builds a Loop.
func NewLoop(cfg LoopConfig, opts ...LoopOption) (*Loop, error) {
	switch {
	case cfg.Engine == nil:
		return nil, errors.New("conversation: engine is required")
	case cfg.STT == nil:
		return nil, errors.New("conversation: STT provider is required")
	case cfg.State == nil || cfg.Tracker == nil:
		return nil, errors.New("conversation: persona state and tracker are required")
	}

	l := &Loop{
		engine:            cfg.Engine,
		stt:               cfg.STT,
		corrector:         cfg.Corrector,
		chat:              cfg.Chat,
		state:             cfg.State,
		tracker:           cfg.Tracker,
		consolidator:      cfg.Consolidator,
		metrics:           cfg.Metrics,
		tickInterval:      cfg.TickInterval,
		idleChatDelay:     cfg.IdleChatDelay,
		proactiveInterval: cfg.ProactiveInterval,
		proactiveChance:   cfg.ProactiveChance,
		proactiveEnabled:  !cfg.DisableProactive,
		randFloat:         rand.Float64,
		randIntn:          rand.Intn,
		lastActivity:      time.Now(),
	}
	if l.tickInterval <= 0 {
		l.tickInterval = defaultTickInterval
	}
	if l.idleChatDelay <= 0 {
		l.idleChatDelay = defaultIdleChatDelay
	}
	if l.proactiveInterval <= 0 {
		l.proactiveInterval = defaultProactiveInterval
	}
	if l.proactiveChance <= 0 {
		l.proactiveChance = defaultProactiveChance
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Busy reports whether a turn is currently being processed or spoken. The
// audio segmenter uses it as its gate so speech during a reply becomes a
// barge-in interrupt instead of a new utterance.
func (l *Loop) Busy() bool {
	return l.busy.Load()
}

// Run consumes utterances and barge-in interrupts until ctx is cancelled.
// It owns the turn lifecycle: one turn at a time, each cancellable by the
// next interrupt. On shutdown any pending conversation segment is flushed
// to memory.
func (l *Loop) Run(ctx context.Context, utterances <-chan audio.Utterance, interrupts <-chan struct{}) error {
	ticker := time.NewTicker(l.tickInterval)
	defer ticker.Stop()

	var turnWG sync.WaitGroup
	defer turnWG.Wait()

	for {
		select {
		case <-ctx.Done():
			l.interrupt()
			turnWG.Wait()
			l.flushSegment()
			return ctx.Err()

		case u, ok := <-utterances:
			if !ok {
				l.interrupt()
				turnWG.Wait()
				l.flushSegment()
				return nil
			}
			l.startTurn(ctx, &turnWG, func(turnCtx context.Context) {
				l.handleUtterance(turnCtx, u)
			})

		case _, ok := <-interrupts:
			if !ok {
				interrupts = nil
				continue
			}
			slog.Info("barge-in, cutting speech")
			l.interrupt()

		case <-ticker.C:
			l.tick(ctx, &turnWG)
		}
	}
}

// startTurn runs fn on its own goroutine under the busy gate. A turn that
// arrives while another is running is dropped; the segmenter's gate makes
// that a rare race, not a steady state.
func (l *Loop) startTurn(ctx context.Context, wg *sync.WaitGroup, fn func(context.Context)) {
	if !l.busy.CompareAndSwap(false, true) {
		slog.Debug("turn dropped, another is in flight")
		return
	}

	turnCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancelTurn = cancel
	l.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.busy.Store(false)
		defer cancel()
		fn(turnCtx)
		l.touch()
	}()
}

// interrupt cancels the in-flight turn, if any.
func (l *Loop) interrupt() {
	l.mu.Lock()
	cancel := l.cancelTurn
	l.cancelTurn = nil
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// handleUtterance is the voice path: transcribe, correct, respond.
func (l *Loop) handleUtterance(ctx context.Context, u audio.Utterance) {
	start := time.Now()
	result, err := l.stt.Transcribe(ctx, u)
	if l.metrics != nil {
		l.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		slog.Warn("transcription failed", "err", err)
		return
	}

	text := strings.TrimSpace(result.Text)
	if len([]rune(text)) < minTranscriptLen {
		return
	}

	if l.corrector != nil {
		corrected, corrections := l.corrector.Correct(text)
		for _, c := range corrections {
			slog.Debug("transcript corrected",
				"from", c.Original, "to", c.Corrected, "confidence", fmt.Sprintf("%.2f", c.Confidence))
		}
		text = corrected
	}

	slog.Info("user said", "text", text)
	l.state.Observe(persona.EventUserSpoke)

	// Reject duplicates before touching the chat buffer so viewer messages
	// survive a stale mic echo and surface in the next real turn.
	if l.engine.seenBefore(text) {
		slog.Debug("duplicate input ignored", "text", text)
		return
	}

	digest := l.drainChat(ctx)
	err = l.engine.Respond(ctx, persona.ModeRespond, text, digest)
	switch {
	case errors.Is(err, ErrDuplicateInput):
		l.requeueDigest(digest)
		slog.Debug("duplicate input ignored", "text", text)
	case errors.Is(err, context.Canceled):
	case err != nil:
		slog.Error("turn failed", "err", err)
	}
}

// tick runs the background duties: mood decay, idle chat reaction and
// proactive thoughts. Skipped entirely while a turn is in flight.
func (l *Loop) tick(ctx context.Context, wg *sync.WaitGroup) {
	idle := time.Since(l.activity())
	l.state.Tick(idle)

	if l.Busy() {
		return
	}

	// Buffered chat gets a reaction after a short lull.
	if l.chat != nil && idle > l.idleChatDelay && l.chat.Buffered() > 0 {
		digest := l.drainChat(ctx)
		if digest == "" {
			return
		}
		// An identical digest is not re-read aloud, but it stays pending so
		// the messages still reach the next prompt.
		if digest == l.lastIdleChatSeen() {
			l.requeueDigest(digest)
			return
		}
		l.setLastIdleChat(digest)
		l.startTurn(ctx, wg, func(turnCtx context.Context) {
			slog.Info("reacting to idle chat")
			err := l.engine.Respond(turnCtx, persona.ModeChatReact, "[Twitch chat]:\n"+digest, "")
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("chat reaction failed", "err", err)
			}
		})
		return
	}

	// Long total silence may trigger an unprompted remark.
	chatWaiting := l.chat != nil && l.chat.Buffered() > 0
	if l.proactiveEnabled && idle > l.proactiveInterval && !chatWaiting && l.randFloat() < l.proactiveChance {
		prompt := proactivePrompts[l.randIntn(len(proactivePrompts))]
		if l.randFloat() < randomEmotionChance {
			emotions := persona.Emotions()
			l.tracker.Set(emotions[l.randIntn(len(emotions))])
		}
		l.startTurn(ctx, wg, func(turnCtx context.Context) {
			slog.Info("proactive thought triggered")
			err := l.engine.Respond(turnCtx, persona.ModeThought, prompt, "")
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("proactive thought failed", "err", err)
			}
		})
	}
}

// drainChat empties the chat buffer into a digest and updates mood state
// and metrics per message. A digest requeued from a rejected turn is merged
// in front of the fresh messages.
func (l *Loop) drainChat(ctx context.Context) string {
	pending := l.takePendingDigest()
	if l.chat == nil {
		return pending
	}
	msgs := l.chat.Drain()
	if len(msgs) == 0 {
		return pending
	}

	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = fmt.Sprintf("%s: %s", m.User, m.Text)
		l.state.Observe(persona.EventChatMessage)
	}
	if l.metrics != nil {
		l.metrics.ChatMessages.Add(ctx, int64(len(msgs)))
	}
	digest := FormatChatDigest(lines)
	if pending != "" {
		digest = pending + "\n" + digest
	}
	return digest
}

// requeueDigest puts a drained digest back for the next drain.
func (l *Loop) requeueDigest(digest string) {
	if digest == "" {
		return
	}
	l.mu.Lock()
	if l.pendingDigest != "" && l.pendingDigest != digest {
		digest = l.pendingDigest + "\n" + digest
	}
	l.pendingDigest = digest
	l.mu.Unlock()
}

func (l *Loop) takePendingDigest() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.pendingDigest
	l.pendingDigest = ""
	return d
}

// flushSegment stores whatever conversation segment is still pending.
func (l *Loop) flushSegment() {
	if l.consolidator == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := l.consolidator.Flush(ctx); err != nil {
		slog.Warn("final consolidation failed", "err", err)
	}
}

func (l *Loop) touch() {
	l.mu.Lock()
	l.lastActivity = time.Now()
	l.mu.Unlock()
}

func (l *Loop) activity() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastActivity
}

func (l *Loop) lastIdleChatSeen() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastIdleChat
}

func (l *Loop) setLastIdleChat(s string) {
	l.mu.Lock()
	l.lastIdleChat = s
	l.mu.Unlock()
}
