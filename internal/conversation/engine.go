// Package conversation runs the response pipeline and the stream loop that
// together make the character talk: transcript in, prompt assembly, LLM
// generation with tool calls, persona enforcement, sentence-chunked speech
// synthesis, memory writes and emotion updates.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mumeinosato/kira-ai/internal/observe"
	"github.com/mumeinosato/kira-ai/internal/persona"
	"github.com/mumeinosato/kira-ai/internal/session"
	"github.com/mumeinosato/kira-ai/internal/tools"
	"github.com/mumeinosato/kira-ai/pkg/audio"
	"github.com/mumeinosato/kira-ai/pkg/memory"
	"github.com/mumeinosato/kira-ai/pkg/provider/llm"
	"github.com/mumeinosato/kira-ai/pkg/provider/tts"
)

// ErrDuplicateInput marks a user utterance whose exact text is already in
// the live history. Stale echoes from the speaker picked up by the mic tend
// to produce these.
var ErrDuplicateInput = errors.New("conversation: duplicate input ignored")

// apologyLine is spoken when every LLM in the fallback chain fails.
const apologyLine = "Oops, my brain just short-circuited. What were we talking about?"

// maxToolRounds caps the generate→execute→feed-back loop for tool-capable
// models.
const maxToolRounds = 3

// Avatar mirrors speech onto a visual character. Implementations must not
// block past the spoken text's duration.
type Avatar interface {
	Speak(ctx context.Context, text string) error
}

// Engine executes one conversation turn end to end. Methods are not safe
// for concurrent use; the [Loop] serialises turns.
type Engine struct {
	llm          llm.Provider
	tts          tts.Provider
	platform     audio.Platform
	voice        tts.VoiceProfile
	store        memory.Store
	session      string
	profile      persona.Profile
	tracker      *persona.Tracker
	state        *persona.State
	director     *persona.Director
	enforcer     *persona.Enforcer
	classifier   *persona.Classifier
	history      *session.ContextManager
	consolidator *session.Consolidator
	registry     *tools.Registry
	assembler    *Assembler
	avatar       Avatar
	metrics      *observe.Metrics
	chunkLen     int
}

// EngineConfig wires an [Engine]. LLM, TTS, Platform, Voice, Profile,
// Tracker, State, Director, Enforcer and History are required; everything
// else degrades gracefully when nil.
type EngineConfig struct {
	LLM      llm.Provider
	TTS      tts.Provider
	Platform audio.Platform
	Voice    tts.VoiceProfile

	Profile  persona.Profile
	Tracker  *persona.Tracker
	State    *persona.State
	Director *persona.Director
	Enforcer *persona.Enforcer

	// Classifier updates the display emotion after each turn. Optional.
	Classifier *persona.Classifier

	// History is the rolling in-context conversation.
	History *session.ContextManager

	// Store persists turns for long-term recall. Optional.
	Store memory.Store

	// Session tags memory records. Required when Store is set.
	Session string

	// Consolidator condenses finished segments into stored facts. Optional.
	Consolidator *session.Consolidator

	// Registry offers tools to tool-capable models. Optional.
	Registry *tools.Registry

	// Assembler builds the per-turn system prompt.
	Assembler *Assembler

	// Avatar lip-syncs spoken text. Optional.
	Avatar Avatar

	// Metrics records pipeline latencies and counters. Optional.
	Metrics *observe.Metrics

	// SpeechChunkLen is the target TTS chunk size in runes. Zero uses the
	// package default.
	SpeechChunkLen int
}

// NewEngine validates cfg and builds an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	switch {
	case cfg.LLM == nil:
		return nil, errors.New("conversation: LLM provider is required")
	case cfg.TTS == nil:
		return nil, errors.New("conversation: TTS provider is required")
	case cfg.Platform == nil:
		return nil, errors.New("conversation: audio platform is required")
	case cfg.History == nil:
		return nil, errors.New("conversation: context manager is required")
	case cfg.Tracker == nil || cfg.State == nil || cfg.Director == nil || cfg.Enforcer == nil:
		return nil, errors.New("conversation: persona components are required")
	case cfg.Assembler == nil:
		return nil, errors.New("conversation: prompt assembler is required")
	case cfg.Store != nil && cfg.Session == "":
		return nil, errors.New("conversation: session id is required with a memory store")
	}

	return &Engine{
		llm:          cfg.LLM,
		tts:          cfg.TTS,
		platform:     cfg.Platform,
		voice:        cfg.Voice,
		store:        cfg.Store,
		session:      cfg.Session,
		profile:      cfg.Profile,
		tracker:      cfg.Tracker,
		state:        cfg.State,
		director:     cfg.Director,
		enforcer:     cfg.Enforcer,
		classifier:   cfg.Classifier,
		history:      cfg.History,
		consolidator: cfg.Consolidator,
		registry:     cfg.Registry,
		assembler:    cfg.Assembler,
		avatar:       cfg.Avatar,
		metrics:      cfg.Metrics,
		chunkLen:     cfg.SpeechChunkLen,
	}, nil
}

// Respond runs one full turn. userText is what triggered it (a transcript,
// a chat digest or a thought prompt, depending on mode); chatDigest is the
// unseen chat to acknowledge alongside a voice reply, empty when there is
// none. Cancelling ctx stops generation and cuts speech mid-sentence.
func (e *Engine) Respond(ctx context.Context, mode persona.Mode, userText, chatDigest string) error {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil
	}
	if mode == persona.ModeRespond && e.seenBefore(userText) {
		return ErrDuplicateInput
	}

	turnStart := time.Now()
	plan := e.director.Plan(mode)
	systemPrompt := e.assembler.Assemble(ctx, userText) + "\n\n" + plan.Directive

	userContent := userText
	if chatDigest != "" {
		userContent += fmt.Sprintf(
			"\n\nWhile you were listening, your Twitch chat said:\n%s\n\nGive a single, natural response that also acknowledges the chat if it makes sense.",
			chatDigest,
		)
	}

	response, genErr := e.generate(ctx, systemPrompt, plan, userContent)
	if genErr != nil {
		// A barge-in cancels the turn's context; that is not a provider
		// failure and must not trigger the apology line.
		if errors.Is(genErr, context.Canceled) || ctx.Err() != nil {
			return genErr
		}
		slog.Error("generation failed, speaking apology", "mode", mode, "err", genErr)
		if err := e.speak(ctx, apologyLine); err != nil {
			slog.Warn("apology playback failed", "err", err)
		}
		return nil
	}

	response = CleanResponse(e.profile.Name, response)
	response, err := e.enforcer.Enforce(ctx, response, func(ctx context.Context, directive string) (string, error) {
		return e.generate(ctx, systemPrompt+"\n\n"+directive, plan, userContent)
	})
	if err != nil {
		return err
	}
	if response == "" {
		return nil
	}

	if err := e.speak(ctx, response); err != nil {
		if errors.Is(err, context.Canceled) {
			// Barge-in. The turn still counts; memory keeps the full reply.
			slog.Info("speech interrupted", "mode", mode)
		} else {
			slog.Warn("speech playback failed", "err", err)
		}
	}

	e.record(ctx, mode, userText, response)
	e.updateEmotion(ctx, userText, response)
	e.state.Observe(persona.EventSpoke)
	if e.metrics != nil {
		e.metrics.TurnDuration.Record(ctx, time.Since(turnStart).Seconds())
	}
	return nil
}

// seenBefore reports whether the exact user text already appears in the
// live history.
func (e *Engine) seenBefore(text string) bool {
	for _, m := range e.history.Messages() {
		if m.Role == "user" && m.Content == text {
			return true
		}
	}
	return false
}

// generate produces the reply text, running the tool loop when the model
// supports tool calling and tools are registered.
func (e *Engine) generate(ctx context.Context, systemPrompt string, plan persona.ActionPlan, userContent string) (string, error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
		}
	}()

	req := llm.CompletionRequest{
		Messages:     append(e.history.Messages(), llm.Message{Role: "user", Content: userContent}),
		SystemPrompt: systemPrompt,
		Temperature:  plan.Temperature,
		MaxTokens:    plan.MaxTokens,
	}

	if e.registry != nil && e.registry.Len() > 0 && e.llm.Capabilities().SupportsToolCalling {
		req.Tools = e.registry.Definitions()
		return e.completeWithTools(ctx, req)
	}
	return e.stream(ctx, req)
}

// stream collects a streaming completion into the full reply text.
func (e *Engine) stream(ctx context.Context, req llm.CompletionRequest) (string, error) {
	ch, err := e.llm.StreamCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("conversation: stream completion: %w", err)
	}

	var buf strings.Builder
	for chunk := range ch {
		buf.WriteString(chunk.Text)
		if chunk.FinishReason == "error" {
			return "", fmt.Errorf("conversation: stream failed mid-generation")
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// completeWithTools runs the request with the tool loop: execute every call
// the model makes, feed results back, repeat up to maxToolRounds.
func (e *Engine) completeWithTools(ctx context.Context, req llm.CompletionRequest) (string, error) {
	for round := 0; round < maxToolRounds; round++ {
		resp, err := e.llm.Complete(ctx, req)
		if err != nil {
			return "", fmt.Errorf("conversation: complete: %w", err)
		}
		if resp == nil || len(resp.ToolCalls) == 0 {
			if resp == nil {
				return "", nil
			}
			return resp.Content, nil
		}

		req.Messages = append(req.Messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result, err := e.registry.Execute(ctx, call)
			if err != nil {
				result = tools.Result{Content: err.Error(), IsError: true}
			}
			req.Messages = append(req.Messages, llm.Message{
				Role:       "tool",
				Content:    result.Content,
				ToolCallID: call.ID,
			})
		}
	}

	// Tool budget exhausted. Ask for a plain answer.
	req.Tools = nil
	resp, err := e.llm.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("conversation: complete after tool rounds: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}

// speak renders text through TTS and the audio platform, chunked so
// playback starts before the whole reply is synthesized. The avatar, when
// present, mouths along.
func (e *Engine) speak(ctx context.Context, text string) error {
	chunks := SplitForSpeech(text, e.chunkLen)
	if len(chunks) == 0 {
		return nil
	}

	start := time.Now()
	textCh := make(chan string, len(chunks))
	for _, c := range chunks {
		textCh <- c
	}
	close(textCh)

	audioCh, err := e.tts.SynthesizeStream(ctx, textCh, e.voice)
	if err != nil {
		return fmt.Errorf("conversation: synthesize: %w", err)
	}

	if e.avatar != nil {
		go func() {
			if err := e.avatar.Speak(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
				slog.Debug("avatar speak failed", "err", err)
			}
		}()
	}

	err = e.platform.Play(ctx, audioCh)
	if e.metrics != nil {
		e.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		audio.Drain(audioCh)
		return err
	}
	return nil
}

// record appends the turn to the in-context history, persists it to
// long-term memory for direct voice turns, and feeds the consolidator.
func (e *Engine) record(ctx context.Context, mode persona.Mode, userText, response string) {
	if err := e.history.AddMessages(ctx,
		llm.Message{Role: "user", Content: userText},
		llm.Message{Role: "assistant", Content: response},
	); err != nil {
		slog.Warn("history update failed", "err", err)
	}

	if e.store != nil && mode == persona.ModeRespond {
		if _, err := e.store.AddTurn(ctx, e.session, "user", userText); err != nil {
			slog.Warn("memory write failed", "role", "user", "err", err)
		} else if e.metrics != nil {
			e.metrics.RecordMemoryWrite(ctx, string(memory.KindTurn))
		}
		if _, err := e.store.AddTurn(ctx, e.session, "assistant", response); err != nil {
			slog.Warn("memory write failed", "role", "assistant", "err", err)
		} else if e.metrics != nil {
			e.metrics.RecordMemoryWrite(ctx, string(memory.KindTurn))
		}
	}

	if e.consolidator != nil {
		if _, err := e.consolidator.ObserveTurn(ctx, userText, response); err != nil {
			slog.Warn("consolidation failed", "err", err)
		}
	}
}

// updateEmotion classifies the finished turn and moves the tracker, falling
// back to the slow decay toward the baseline when nothing changed.
func (e *Engine) updateEmotion(ctx context.Context, userText, response string) {
	if e.classifier == nil {
		e.tracker.Decay()
		return
	}

	from := e.tracker.Current()
	emotion, err := e.classifier.Classify(ctx, fmt.Sprintf("%s\n%s", userText, response))
	if err != nil {
		slog.Debug("emotion classification failed", "err", err)
		return
	}

	if e.tracker.Set(emotion) {
		slog.Info("emotion changed", "from", from, "to", emotion)
		if e.metrics != nil {
			e.metrics.RecordEmotionTransition(ctx, string(from), string(emotion))
		}
		return
	}
	if e.tracker.Decay() && e.metrics != nil {
		e.metrics.RecordEmotionTransition(ctx, string(from), string(e.tracker.Current()))
	}
}
