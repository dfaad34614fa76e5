// Package app wires all Kira subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the stream session, and Shutdown tears everything
// down in reverse order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithChat, etc.). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/mumeinosato/kira-ai/internal/config"
	"github.com/mumeinosato/kira-ai/internal/conversation"
	"github.com/mumeinosato/kira-ai/internal/health"
	"github.com/mumeinosato/kira-ai/internal/observe"
	"github.com/mumeinosato/kira-ai/internal/persona"
	"github.com/mumeinosato/kira-ai/internal/resilience"
	"github.com/mumeinosato/kira-ai/internal/session"
	"github.com/mumeinosato/kira-ai/internal/tools"
	"github.com/mumeinosato/kira-ai/internal/tools/memoryrecall"
	"github.com/mumeinosato/kira-ai/internal/tools/websearch"
	"github.com/mumeinosato/kira-ai/internal/transcript"
	"github.com/mumeinosato/kira-ai/internal/twitch"
	"github.com/mumeinosato/kira-ai/internal/vtube"
	"github.com/mumeinosato/kira-ai/pkg/audio"
	"github.com/mumeinosato/kira-ai/pkg/memory"
	"github.com/mumeinosato/kira-ai/pkg/memory/postgres"
	"github.com/mumeinosato/kira-ai/pkg/provider/embeddings"
	"github.com/mumeinosato/kira-ai/pkg/provider/llm"
	"github.com/mumeinosato/kira-ai/pkg/provider/stt"
	"github.com/mumeinosato/kira-ai/pkg/provider/tts"
	"github.com/mumeinosato/kira-ai/pkg/provider/vad"
	"github.com/mumeinosato/kira-ai/pkg/provider/vad/energy"
)

// defaultContextTokens sizes the rolling conversation window when the config
// leaves memory.context_tokens unset.
const defaultContextTokens = 8192

// httpShutdownTimeout bounds the graceful drain of the operations server.
const httpShutdownTimeout = 5 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM        llm.Provider
	STT        stt.Provider
	TTS        tts.Provider
	Embeddings embeddings.Provider
	VAD        vad.Engine
	Audio      audio.Platform
}

// App owns all subsystem lifetimes and orchestrates the Kira stream pipeline.
type App struct {
	providers *Providers
	sessionID string

	// cfgMu guards cfg, which ApplyConfig may swap at runtime.
	cfgMu sync.RWMutex
	cfg   *config.Config

	// Wrapped providers: the configured backends behind circuit breakers.
	llm llm.Provider
	stt stt.Provider
	tts tts.Provider

	// Subsystems, initialised in New and torn down in Shutdown.
	store        memory.Store
	profile      persona.Profile
	tracker      *persona.Tracker
	state        *persona.State
	director     *persona.Director
	enforcer     *persona.Enforcer
	classifier   *persona.Classifier
	history      *session.ContextManager
	consolidator *session.Consolidator
	registry     *tools.Registry
	assembler    *conversation.Assembler
	corrector    *transcript.Corrector
	chat         conversation.ChatSource
	twitch       *twitch.Client
	avatar       conversation.Avatar
	vtube        *vtube.Client
	metrics      *observe.Metrics
	checkers     []health.Checker
	health       *health.Handler
	engine       *conversation.Engine
	loop         *conversation.Loop
	segmenter    *audio.Segmenter

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a memory store instead of connecting to PostgreSQL.
func WithStore(s memory.Store) Option {
	return func(a *App) { a.store = s }
}

// WithChat injects a chat source instead of creating a Twitch client.
func WithChat(c conversation.ChatSource) Option {
	return func(a *App) { a.chat = c }
}

// WithAvatar injects an avatar instead of connecting to VTube Studio.
func WithAvatar(av conversation.Avatar) Option {
	return func(a *App) { a.avatar = av }
}

// WithSessionID pins the memory session identifier instead of generating one.
func WithSessionID(id string) Option {
	return func(a *App) { a.sessionID = id }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil || providers.STT == nil ||
		providers.TTS == nil || providers.Audio == nil {
		return nil, errors.New("app: llm, stt, tts and audio providers are required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		sessionID: "stream-" + uuid.NewString(),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Provider resilience ───────────────────────────────────────────
	a.wrapProviders()

	// ── 2. Memory store ──────────────────────────────────────────────────
	if err := a.initMemory(ctx); err != nil {
		return nil, fmt.Errorf("app: init memory: %w", err)
	}

	// ── 3. Persona ───────────────────────────────────────────────────────
	a.initPersona()

	// ── 4. Session context ───────────────────────────────────────────────
	a.initSession()

	// ── 5. Tools ─────────────────────────────────────────────────────────
	if err := a.initTools(); err != nil {
		return nil, fmt.Errorf("app: init tools: %w", err)
	}

	// ── 6. Chat ──────────────────────────────────────────────────────────
	if err := a.initChat(); err != nil {
		return nil, fmt.Errorf("app: init chat: %w", err)
	}

	// ── 7. Avatar ────────────────────────────────────────────────────────
	if err := a.initAvatar(ctx); err != nil {
		return nil, fmt.Errorf("app: init avatar: %w", err)
	}

	// ── 8. Telemetry + health ────────────────────────────────────────────
	if err := a.initObserve(); err != nil {
		return nil, fmt.Errorf("app: init observe: %w", err)
	}

	// ── 9. Conversation engine + loop ────────────────────────────────────
	if err := a.initConversation(); err != nil {
		return nil, fmt.Errorf("app: init conversation: %w", err)
	}

	// ── 10. Voice front-end ──────────────────────────────────────────────
	if err := a.initSegmenter(); err != nil {
		return nil, fmt.Errorf("app: init segmenter: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// wrapProviders puts each configured provider behind its own circuit breaker
// so a flapping backend degrades to apologies instead of hammering the API.
func (a *App) wrapProviders() {
	cfg := a.config()
	fc := resilience.FallbackConfig{}

	llmWrap := resilience.NewLLMFallback(a.providers.LLM, cfg.Providers.LLM.Name, fc)
	a.llm = llmWrap

	sttWrap := resilience.NewSTTFallback(a.providers.STT, cfg.Providers.STT.Name, fc)
	a.stt = sttWrap

	ttsWrap := resilience.NewTTSFallback(a.providers.TTS, cfg.Providers.TTS.Name, fc)
	a.tts = ttsWrap
}

// initMemory connects the PostgreSQL memory store or uses an injected one.
// A missing DSN disables long-term memory rather than failing startup.
func (a *App) initMemory(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	cfg := a.config()
	dsn := cfg.Memory.PostgresDSN
	if dsn == "" {
		slog.Warn("memory.postgres_dsn not set, long-term memory disabled")
		return nil
	}
	if a.providers.Embeddings == nil {
		return errors.New("an embeddings provider is required when memory.postgres_dsn is set")
	}

	store, err := postgres.New(ctx, dsn, a.providers.Embeddings)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error { store.Close(); return nil })
	a.checkers = append(a.checkers, health.Checker{Name: "memory", Check: store.Ping})
	return nil
}

// initPersona loads the character profile and builds the mood machinery.
func (a *App) initPersona() {
	cfg := a.config()
	p := cfg.Persona

	a.profile = persona.Load(p.Name, p.PromptFile, p.Lexicon, p.BannedPhrases)

	var trackerOpts []persona.TrackerOption
	if p.BaselineEmotion != "" {
		if baseline, ok := persona.ParseEmotion(p.BaselineEmotion); ok {
			trackerOpts = append(trackerOpts, persona.WithBaseline(baseline))
		}
	}
	a.tracker = persona.NewTracker(trackerOpts...)
	a.state = persona.NewState()
	a.director = persona.NewDirector(a.state, a.tracker, p.BaseTemperature)
	a.enforcer = persona.NewEnforcer(a.profile.BannedPhrases)
	a.classifier = persona.NewClassifier(a.llm)
	a.corrector = transcript.NewCorrector(a.profile.Lexicon)
}

// initSession builds the rolling context window and, when a memory store is
// available, the segment consolidator.
func (a *App) initSession() {
	cfg := a.config()

	maxTokens := cfg.Memory.ContextTokens
	if maxTokens <= 0 {
		maxTokens = defaultContextTokens
	}
	a.history = session.NewContextManager(session.ContextManagerConfig{
		MaxTokens:  maxTokens,
		Summariser: session.NewLLMSummariser(a.llm),
	})

	if a.store != nil {
		a.consolidator = session.NewConsolidator(session.ConsolidatorConfig{
			Store:         a.store,
			LLM:           a.llm,
			Session:       a.sessionID,
			TurnThreshold: cfg.Memory.SegmentTurns,
		})
	}
}

// initTools assembles the tool registry offered to tool-capable models.
func (a *App) initTools() error {
	cfg := a.config()
	a.registry = tools.NewRegistry()

	if a.store != nil {
		a.registry.Register(memoryrecall.NewTool(a.store, a.sessionID))
	}

	if ws := cfg.Tools.WebSearch; ws.Enabled {
		client, err := websearch.New(ws.APIKey, ws.EngineID)
		if err != nil {
			return err
		}
		a.registry.Register(websearch.NewTool(client, a.store, a.sessionID))
	}

	slog.Info("tool registry ready", "tools", a.registry.Len())
	return nil
}

// initChat creates the Twitch client unless one was injected or chat is
// disabled.
func (a *App) initChat() error {
	if a.chat != nil {
		return nil
	}
	cfg := a.config()
	if !cfg.Twitch.Enabled {
		return nil
	}

	client, err := twitch.NewClient(cfg.Twitch.BotUsername, cfg.Twitch.OAuthToken, cfg.Twitch.Channel)
	if err != nil {
		return err
	}
	a.twitch = client
	a.chat = client
	a.checkers = append(a.checkers, health.Checker{
		Name: "twitch",
		Check: func(context.Context) error {
			if !client.Joined() {
				return errors.New("not connected to channel")
			}
			return nil
		},
	})
	return nil
}

// initAvatar connects to VTube Studio unless an avatar was injected or the
// integration is disabled.
func (a *App) initAvatar(ctx context.Context) error {
	if a.avatar != nil {
		return nil
	}
	cfg := a.config()
	if !cfg.VTube.Enabled {
		return nil
	}

	var opts []vtube.Option
	if cfg.VTube.URL != "" {
		opts = append(opts, vtube.WithServerURL(cfg.VTube.URL))
	}
	client, err := vtube.New(cfg.VTube.PluginName, cfg.VTube.PluginDeveloper, opts...)
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return err
	}
	a.vtube = client
	a.avatar = client
	a.closers = append(a.closers, client.Close)
	return nil
}

// initObserve builds the metrics sink and the operations HTTP handler. The
// meter provider itself is installed by main (or left as the no-op default
// in tests).
func (a *App) initObserve() error {
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}
	a.metrics = metrics

	a.health = health.New(func() health.Snapshot {
		s := health.Snapshot{
			Emotion: string(a.tracker.Current()),
			Mood:    a.state.Snapshot().Label,
		}
		if a.chat != nil {
			s.BufferedChat = a.chat.Buffered()
		}
		if a.twitch != nil {
			s.TwitchJoined = a.twitch.Joined()
		}
		return s
	}, a.checkers...)
	return nil
}

// initConversation builds the prompt assembler, the turn engine and the
// session loop on top of everything initialised so far.
func (a *App) initConversation() error {
	cfg := a.config()

	var asmOpts []conversation.AssemblerOption
	if cfg.Memory.RecallTopK > 0 {
		asmOpts = append(asmOpts, conversation.WithRecallTopK(cfg.Memory.RecallTopK))
	}
	a.assembler = conversation.NewAssembler(a.store, a.profile, a.tracker, a.state, a.sessionID, asmOpts...)

	voice := tts.VoiceProfile{
		ID:       cfg.Providers.TTS.OptionString("voice_id"),
		Provider: cfg.Providers.TTS.Name,
	}

	engine, err := conversation.NewEngine(conversation.EngineConfig{
		LLM:          a.llm,
		TTS:          a.tts,
		Platform:     a.providers.Audio,
		Voice:        voice,
		Profile:      a.profile,
		Tracker:      a.tracker,
		State:        a.state,
		Director:     a.director,
		Enforcer:     a.enforcer,
		Classifier:   a.classifier,
		History:      a.history,
		Store:        a.store,
		Session:      a.sessionID,
		Consolidator: a.consolidator,
		Registry:     a.registry,
		Assembler:    a.assembler,
		Avatar:       a.avatar,
		Metrics:      a.metrics,
	})
	if err != nil {
		return err
	}
	a.engine = engine

	p := cfg.Persona.Proactive
	loop, err := conversation.NewLoop(conversation.LoopConfig{
		Engine:            engine,
		STT:               a.stt,
		State:             a.state,
		Tracker:           a.tracker,
		Corrector:         a.corrector,
		Chat:              a.chat,
		Consolidator:      a.consolidator,
		Metrics:           a.metrics,
		IdleChatDelay:     time.Duration(p.IdleChatSeconds * float64(time.Second)),
		ProactiveInterval: time.Duration(p.IdleSeconds * float64(time.Second)),
		ProactiveChance:   p.Chance,
		DisableProactive:  p.Disabled,
	})
	if err != nil {
		return err
	}
	a.loop = loop
	return nil
}

// initSegmenter builds the VAD-gated utterance segmenter. Without a VAD
// engine the voice input path is disabled; chat and proactive remarks still
// work.
func (a *App) initSegmenter() error {
	if a.providers.VAD == nil {
		slog.Warn("no vad provider configured, voice input disabled")
		return nil
	}
	cfg := a.config()

	speech, silence, err := energy.Aggressiveness(cfg.Audio.VADAggressiveness)
	if err != nil {
		return err
	}
	sampleRate := cfg.Audio.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	frameMs := cfg.Audio.FrameMs
	if frameMs <= 0 {
		frameMs = 30
	}
	pause := cfg.Audio.PauseSeconds
	if pause <= 0 {
		pause = 1.2
	}
	seg, err := audio.NewSegmenter(a.providers.VAD, audio.SegmenterConfig{
		SampleRate:       sampleRate,
		FrameMs:          frameMs,
		PauseThreshold:   time.Duration(pause * float64(time.Second)),
		SpeechThreshold:  speech,
		SilenceThreshold: silence,
	})
	if err != nil {
		return err
	}
	a.segmenter = seg
	return nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run executes the stream session until ctx is cancelled: the operations
// HTTP server, the Twitch client, the microphone pipeline and the
// conversation loop all run under one errgroup.
func (a *App) Run(ctx context.Context) error {
	cfg := a.config()
	g, ctx := errgroup.WithContext(ctx)

	// Operations endpoints: /healthz, /readyz, /statusz, /metrics. An empty
	// listen address disables them.
	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		a.health.Register(mux)
		srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: operations server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			drainCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()
			return srv.Shutdown(drainCtx)
		})
	}

	if a.twitch != nil {
		g.Go(func() error { return a.twitch.Run(ctx) })
	}

	// Microphone → VAD segmenter → conversation loop. With no segmenter the
	// loop still runs for chat reactions and proactive remarks.
	var (
		utterances <-chan audio.Utterance
		interrupts <-chan struct{}
	)
	if a.segmenter != nil {
		frames, err := a.providers.Audio.Capture(ctx)
		if err != nil {
			return fmt.Errorf("app: open capture: %w", err)
		}
		utterances, interrupts = a.segmenter.Run(ctx, frames, a.loop.Busy)
	}
	g.Go(func() error { return a.loop.Run(ctx, utterances, interrupts) })

	slog.Info("kira running",
		"listen", cfg.Server.ListenAddr,
		"session", a.sessionID,
		"persona", a.profile.Name,
		"twitch", a.twitch != nil,
		"vtube", a.vtube != nil,
		"voice", a.segmenter != nil,
	)

	return g.Wait()
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ApplyConfig applies the reloadable subset of a changed configuration: the
// log level takes effect immediately, everything else is logged as needing a
// restart. The config file watcher calls this on every accepted change.
func (a *App) ApplyConfig(next *config.Config) {
	prev := a.config()
	diff := config.DiffConfigs(prev, next)
	if diff.Empty() {
		return
	}

	if diff.LogLevelChanged {
		slog.SetLogLoggerLevel(diff.NewLogLevel.Level())
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.PersonaChanged || diff.ProactiveChanged {
		slog.Warn("persona configuration changed, restart to apply")
	}

	a.cfgMu.Lock()
	a.cfg = next
	a.cfgMu.Unlock()
}

// ReloadPrompt swaps the persona system prompt for new prompt file contents.
// The prompt file watcher calls this; an emptied file is ignored.
func (a *App) ReloadPrompt(data []byte) {
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		slog.Warn("persona prompt file emptied, keeping current prompt")
		return
	}
	a.assembler.SetSystemPrompt(prompt)
	slog.Info("persona prompt reloaded", "bytes", len(prompt))
}

// PromptFile returns the configured persona prompt path, empty when the
// built-in prompt is in use.
func (a *App) PromptFile() string {
	return a.config().Persona.PromptFile
}

func (a *App) config() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		if err := a.providers.Audio.Close(); err != nil {
			slog.Warn("audio close error", "err", err)
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
