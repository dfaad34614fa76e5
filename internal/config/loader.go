package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":        {"azure", "whisper", "whispercpp"},
	"tts":        {"elevenlabs", "azure"},
	"embeddings": {"openai", "ollama"},
	"vad":        {"energy"},
}

// envRefPattern matches ${VAR} references in the raw config text.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadEnvFile loads a .env file into the process environment so ${VAR}
// references in the config resolve. A missing file is not an error; secrets
// may equally come from the real environment.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load env file %q: %w", path, err)
	}
	return nil
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expanding ${VAR} references
// from the environment first, and validates the result. Useful in tests
// where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	expanded := envRefPattern.ReplaceAllStringFunc(string(data), func(ref string) string {
		name := envRefPattern.FindStringSubmatch(ref)[1]
		return os.Getenv(name)
	})

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found, so a misconfigured start names
// all missing keys at once instead of one per restart.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)

	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}

	// Local model files must exist before the first utterance arrives, not
	// fail twenty seconds into a stream.
	if cfg.Providers.LLM.Name == "llamacpp" {
		if path := cfg.Providers.LLM.OptionString("model_path"); path != "" {
			if _, err := os.Stat(path); err != nil {
				errs = append(errs, fmt.Errorf("providers.llm.options.model_path %q does not exist; place the GGUF model under models/", path))
			}
		}
	}
	if cfg.Providers.STT.Name == "whispercpp" {
		if path := cfg.Providers.STT.OptionString("model_path"); path != "" {
			if _, err := os.Stat(path); err != nil {
				errs = append(errs, fmt.Errorf("providers.stt.options.model_path %q does not exist; place the whisper model under models/", path))
			}
		}
	}

	if cfg.Providers.STT.Name == "azure" {
		if cfg.Providers.STT.APIKey == "" {
			errs = append(errs, errors.New("providers.stt.api_key is required for azure (set AZURE_SPEECH_KEY)"))
		}
		if cfg.Providers.STT.OptionString("region") == "" {
			errs = append(errs, errors.New("providers.stt.options.region is required for azure (set AZURE_SPEECH_REGION)"))
		}
	}
	if cfg.Providers.TTS.Name == "azure" {
		if cfg.Providers.TTS.APIKey == "" {
			errs = append(errs, errors.New("providers.tts.api_key is required for azure (set AZURE_SPEECH_KEY)"))
		}
		if cfg.Providers.TTS.OptionString("region") == "" {
			errs = append(errs, errors.New("providers.tts.options.region is required for azure (set AZURE_SPEECH_REGION)"))
		}
	}
	if cfg.Providers.TTS.Name == "elevenlabs" && cfg.Providers.TTS.APIKey == "" {
		errs = append(errs, errors.New("providers.tts.api_key is required for elevenlabs (set ELEVENLABS_API_KEY)"))
	}

	if cfg.Twitch.Enabled {
		if cfg.Twitch.OAuthToken == "" {
			errs = append(errs, errors.New("twitch.oauth_token is required when twitch is enabled (set TWITCH_OAUTH_TOKEN)"))
		}
		if cfg.Twitch.BotUsername == "" {
			errs = append(errs, errors.New("twitch.bot_username is required when twitch is enabled"))
		}
		if cfg.Twitch.Channel == "" {
			errs = append(errs, errors.New("twitch.channel is required when twitch is enabled"))
		}
	}

	if cfg.Tools.WebSearch.Enabled {
		if cfg.Tools.WebSearch.APIKey == "" {
			errs = append(errs, errors.New("tools.web_search.api_key is required when web search is enabled (set GOOGLE_API_KEY)"))
		}
		if cfg.Tools.WebSearch.EngineID == "" {
			errs = append(errs, errors.New("tools.web_search.engine_id is required when web search is enabled (set GOOGLE_CSE_ID)"))
		}
	}

	if a := cfg.Audio.VADAggressiveness; a < 0 || a > 3 {
		errs = append(errs, fmt.Errorf("audio.vad_aggressiveness %d is out of range [0, 3]", a))
	}
	if cfg.Audio.PauseSeconds < 0 {
		errs = append(errs, fmt.Errorf("audio.pause_seconds %.2f must not be negative", cfg.Audio.PauseSeconds))
	}

	if cfg.Memory.PostgresDSN != "" && cfg.Providers.Embeddings.Name == "" {
		errs = append(errs, errors.New("memory.postgres_dsn is set but providers.embeddings is not configured"))
	}
	if cfg.Memory.PostgresDSN == "" {
		slog.Warn("memory.postgres_dsn is empty; long-term memory is disabled for this stream")
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Memory.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but memory.embedding_dimensions is not set; the store will use its default")
	}

	if p := cfg.Persona.Proactive.Chance; p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("persona.proactive.chance %.2f is out of range [0, 1]", p))
	}
	if e := cfg.Persona.BaselineEmotion; e != "" && !isValidEmotion(e) {
		errs = append(errs, fmt.Errorf("persona.baseline_emotion %q is invalid; valid values: happy, sad, angry, sassy, neutral", e))
	}

	return errors.Join(errs...)
}

// isValidEmotion reports whether s names one of the persona emotions.
// Mirrors the set in internal/persona without importing it.
func isValidEmotion(s string) bool {
	switch strings.ToLower(s) {
	case "happy", "sad", "angry", "sassy", "neutral":
		return true
	}
	return false
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
