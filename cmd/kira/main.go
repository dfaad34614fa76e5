// Command kira is the main entry point for the Kira AI streamer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/mumeinosato/kira-ai/internal/app"
	"github.com/mumeinosato/kira-ai/internal/config"
	"github.com/mumeinosato/kira-ai/internal/observe"
	"github.com/mumeinosato/kira-ai/pkg/audio"
	"github.com/mumeinosato/kira-ai/pkg/provider/embeddings"
	ollamaembed "github.com/mumeinosato/kira-ai/pkg/provider/embeddings/ollama"
	oaembed "github.com/mumeinosato/kira-ai/pkg/provider/embeddings/openai"
	"github.com/mumeinosato/kira-ai/pkg/provider/llm"
	"github.com/mumeinosato/kira-ai/pkg/provider/llm/anyllm"
	"github.com/mumeinosato/kira-ai/pkg/provider/stt"
	azurestt "github.com/mumeinosato/kira-ai/pkg/provider/stt/azure"
	"github.com/mumeinosato/kira-ai/pkg/provider/stt/whisper"
	"github.com/mumeinosato/kira-ai/pkg/provider/stt/whispercpp"
	"github.com/mumeinosato/kira-ai/pkg/provider/tts"
	azuretts "github.com/mumeinosato/kira-ai/pkg/provider/tts/azure"
	"github.com/mumeinosato/kira-ai/pkg/provider/tts/elevenlabs"
	"github.com/mumeinosato/kira-ai/pkg/provider/vad"
	"github.com/mumeinosato/kira-ai/pkg/provider/vad/energy"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Environment + configuration ────────────────────────────────────────────
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "kira: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "kira: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "kira: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Level(),
	}))
	slog.SetDefault(logger)

	slog.Info("kira starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "kira",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	cfgWatcher, err := config.NewWatcher(*configPath, func(_, next *config.Config) {
		application.ApplyConfig(next)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer cfgWatcher.Stop()
	}

	if path := application.PromptFile(); path != "" {
		promptWatcher, err := config.NewFileWatcher(path, application.ReloadPrompt)
		if err != nil {
			slog.Warn("prompt watcher disabled", "path", path, "err", err)
		} else {
			defer promptWatcher.Stop()
		}
	}

	slog.Info("kira ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// All hosted backends share the same pattern: optional APIKey + optional
	// BaseURL, routed through any-llm-go.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini", "deepseek", "mistral", "groq",
		"llamacpp", "llamafile",
	} {
		name := providerName
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("azure", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []azurestt.Option
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, azurestt.WithLanguage(lang))
		}
		return azurestt.New(entry.APIKey, entry.OptionString("region"), opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whispercpp", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.OptionString("model_path")
		if modelPath == "" {
			modelPath = entry.Model
		}
		var opts []whispercpp.Option
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, whispercpp.WithLanguage(lang))
		}
		return whispercpp.New(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := entry.OptionString("output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("azure", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []azuretts.Option
		if format := entry.OptionString("output_format"); format != "" {
			opts = append(opts, azuretts.WithOutputFormat(format))
		}
		return azuretts.New(entry.APIKey, entry.OptionString("region"), opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("energy", func(config.ProviderEntry) (vad.Engine, error) {
		return energy.New(), nil
	})
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to
// consume. The audio platform is the null device; real capture is wired in
// by an external bridge.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{
		Audio: audio.NewNullPlatform(),
	}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = p
		slog.Info("provider created", "kind", "llm", "name", name)
	}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.STT = p
		slog.Info("provider created", "kind", "stt", "name", name)
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ps.TTS = p
		slog.Info("provider created", "kind", "tts", "name", name)
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		ps.Embeddings = p
		slog.Info("provider created", "kind", "embeddings", "name", name)
	}

	if name := cfg.Providers.VAD.Name; name != "" {
		p, err := reg.CreateVAD(cfg.Providers.VAD)
		if err != nil {
			return nil, fmt.Errorf("create vad provider %q: %w", name, err)
		}
		ps.VAD = p
		slog.Info("provider created", "kind", "vad", "name", name)
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔════════════════════════════════════════╗")
	fmt.Println("║           Kira startup summary         ║")
	fmt.Println("╠════════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	printProvider("VAD", cfg.Providers.VAD.Name, "")
	printFlag("Twitch chat", cfg.Twitch.Enabled)
	printFlag("VTube Studio", cfg.VTube.Enabled)
	printFlag("Web search", cfg.Tools.WebSearch.Enabled)
	printFlag("Memory store", cfg.Memory.PostgresDSN != "")
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚════════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

func printFlag(name string, enabled bool) {
	value := "(disabled)"
	if enabled {
		value = "enabled"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", name, value)
}
