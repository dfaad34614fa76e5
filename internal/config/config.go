// Package config provides the configuration schema, loader, provider
// registry and file watcher for the Kira stream assistant.
package config

import "log/slog"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l onto the corresponding slog level. Unrecognised values fall
// back to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader]; `${VAR}` references in the file
// are expanded from the environment so secrets stay in the .env file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Persona   PersonaConfig   `yaml:"persona"`
	Twitch    TwitchConfig    `yaml:"twitch"`
	Audio     AudioConfig     `yaml:"audio"`
	Memory    MemoryConfig    `yaml:"memory"`
	VTube     VTubeConfig     `yaml:"vtube"`
	Tools     ToolsConfig     `yaml:"tools"`
}

// ServerConfig holds the health/metrics listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for /healthz, /readyz and /metrics
	// (e.g., ":8090"). Empty disables the HTTP endpoint.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation serves each
// pipeline stage. Each entry selects a named factory in the [Registry].
type ProvidersConfig struct {
	LLM        ProviderEntry `yaml:"llm"`
	STT        ProviderEntry `yaml:"stt"`
	TTS        ProviderEntry `yaml:"tts"`
	Embeddings ProviderEntry `yaml:"embeddings"`
	VAD        ProviderEntry `yaml:"vad"`
}

// ProviderEntry is the common configuration block shared by all provider
// types.
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "llamacpp", "azure", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the standard
	// fields. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// OptionString returns the named option as a string, or "" when absent or
// not a string.
func (e ProviderEntry) OptionString(key string) string {
	if s, ok := e.Options[key].(string); ok {
		return s
	}
	return ""
}

// PersonaConfig describes who the character is and how she behaves during
// lulls.
type PersonaConfig struct {
	// Name is the character's name. Defaults to "Kira".
	Name string `yaml:"name"`

	// PromptFile is a text file holding the system prompt. A missing file
	// falls back to the built-in prompt.
	PromptFile string `yaml:"prompt_file"`

	// Lexicon lists proper nouns used to snap misheard transcript words.
	Lexicon []string `yaml:"lexicon"`

	// BannedPhrases extend the built-in immersion-breaking phrase set.
	BannedPhrases []string `yaml:"banned_phrases"`

	// BaselineEmotion is the emotion the character starts at and drifts
	// back to: happy, sad, angry, sassy or neutral. Empty uses neutral.
	BaselineEmotion string `yaml:"baseline_emotion"`

	// BaseTemperature is the generation temperature before mood
	// adjustment. Zero uses 0.8.
	BaseTemperature float64 `yaml:"base_temperature"`

	Proactive ProactiveConfig `yaml:"proactive"`
}

// ProactiveConfig tunes the unprompted behaviour during silences.
type ProactiveConfig struct {
	// Disabled turns off unprompted remarks entirely.
	Disabled bool `yaml:"disabled"`

	// IdleSeconds is the total silence before a proactive thought may
	// trigger. Zero uses 10 seconds.
	IdleSeconds float64 `yaml:"idle_seconds"`

	// Chance is the per-tick trigger probability once idle. Zero uses 0.8.
	Chance float64 `yaml:"chance"`

	// IdleChatSeconds is the lull after which buffered chat gets a
	// reaction of its own. Zero uses 5 seconds.
	IdleChatSeconds float64 `yaml:"idle_chat_seconds"`
}

// TwitchConfig connects the chat adapter.
type TwitchConfig struct {
	Enabled bool `yaml:"enabled"`

	// OAuthToken is the IRC password ("oauth:..." form).
	OAuthToken string `yaml:"oauth_token"`

	// BotUsername is the account the bot logs in as.
	BotUsername string `yaml:"bot_username"`

	// Channel is the chat channel to join, without the '#'.
	Channel string `yaml:"channel"`
}

// AudioConfig tunes capture and segmentation.
type AudioConfig struct {
	// SampleRate of the mic capture in Hz. Zero uses 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameMs is the capture frame size in milliseconds. Zero uses 30.
	FrameMs int `yaml:"frame_ms"`

	// PauseSeconds of silence close an utterance. Zero uses 1.2.
	PauseSeconds float64 `yaml:"pause_seconds"`

	// VADAggressiveness selects the speech detection threshold, 0 (lenient)
	// to 3 (strict).
	VADAggressiveness int `yaml:"vad_aggressiveness"`

	// OutputDevice names the playback device (e.g., a virtual cable feeding
	// the streaming software). Empty uses the system default.
	OutputDevice string `yaml:"output_device"`
}

// MemoryConfig holds the long-term memory settings.
type MemoryConfig struct {
	// PostgresDSN is the pgvector store connection string. Empty disables
	// long-term memory.
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimensions must match the configured embeddings model.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`

	// RecallTopK is how many memories a prompt recalls. Zero uses 3.
	RecallTopK int `yaml:"recall_top_k"`

	// SegmentTurns is how many turns accumulate before consolidation.
	// Zero uses 8.
	SegmentTurns int `yaml:"segment_turns"`

	// ContextTokens is the live history budget. Zero uses 8192.
	ContextTokens int `yaml:"context_tokens"`
}

// VTubeConfig connects the avatar client.
type VTubeConfig struct {
	Enabled bool `yaml:"enabled"`

	// URL is the VTube Studio API endpoint. Empty uses ws://localhost:8001.
	URL string `yaml:"url"`

	// PluginName identifies this plugin in the VTube Studio consent dialog.
	PluginName string `yaml:"plugin_name"`

	// PluginDeveloper is shown alongside PluginName.
	PluginDeveloper string `yaml:"plugin_developer"`
}

// ToolsConfig enables the LLM-callable tools.
type ToolsConfig struct {
	WebSearch WebSearchConfig `yaml:"web_search"`
}

// WebSearchConfig configures the Google Custom Search tool.
type WebSearchConfig struct {
	Enabled bool `yaml:"enabled"`

	// APIKey is the Google API key.
	APIKey string `yaml:"api_key"`

	// EngineID is the Custom Search Engine id (cx).
	EngineID string `yaml:"engine_id"`
}
