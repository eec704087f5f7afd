package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to reject unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"openai", "whisper"},
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

// LoadFromReader decodes a YAML config from r, applies defaults, and validates
// the result. Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills in the documented default for every zero-valued tunable.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Capture.InteractiveTTL <= 0 {
		cfg.Capture.InteractiveTTL = 2 * time.Minute
	}
	if cfg.Capture.WaitingTTL <= 0 {
		cfg.Capture.WaitingTTL = 5 * time.Minute
	}
	if cfg.Capture.SweepInterval <= 0 {
		cfg.Capture.SweepInterval = time.Minute
	}
	if len(cfg.Capture.CancelWords) == 0 {
		cfg.Capture.CancelWords = []string{"cancelar", "cancel"}
	}
	if cfg.Capture.MinTranscriptLen <= 0 {
		cfg.Capture.MinTranscriptLen = 3
	}
	if cfg.Queue.MaxDepth <= 0 {
		cfg.Queue.MaxDepth = 50
	}
	if cfg.Queue.MaxRetries <= 0 {
		cfg.Queue.MaxRetries = 3
	}
	if cfg.Queue.Backoff <= 0 {
		cfg.Queue.Backoff = 5 * time.Second
	}
	if cfg.Queue.JobTimeout <= 0 {
		cfg.Queue.JobTimeout = 120 * time.Second
	}
	if cfg.Queue.Pause <= 0 {
		cfg.Queue.Pause = 500 * time.Millisecond
	}
	if cfg.Resolver.AcceptThreshold <= 0 {
		cfg.Resolver.AcceptThreshold = 0.8
	}
	if cfg.Resolver.AcceptMargin <= 0 {
		cfg.Resolver.AcceptMargin = 0.15
	}
	if cfg.Resolver.FuzzyThreshold <= 0 {
		cfg.Resolver.FuzzyThreshold = 0.6
	}
	if cfg.Resolver.GroupBoost <= 0 {
		cfg.Resolver.GroupBoost = 0.15
	}
	if cfg.Resolver.GroupPenalty <= 0 {
		cfg.Resolver.GroupPenalty = 0.2
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if err := validateProviderName("stt", cfg.Providers.STT.Name); err != nil {
		errs = append(errs, err)
	}
	if err := validateProviderName("llm", cfg.Providers.LLM.Name); err != nil {
		errs = append(errs, err)
	}
	for _, entry := range cfg.Providers.STTFallbacks {
		if err := validateProviderName("stt", entry.Name); err != nil {
			errs = append(errs, err)
		}
	}
	for _, entry := range cfg.Providers.LLMFallbacks {
		if err := validateProviderName("llm", entry.Name); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Discord.Token != "" && cfg.Discord.GuildID == "" {
		errs = append(errs, errors.New("discord.guild_id must be set when discord.token is configured"))
	}

	if cfg.Resolver.AcceptThreshold > 1 {
		errs = append(errs, fmt.Errorf("resolver.accept_threshold %v exceeds 1.0", cfg.Resolver.AcceptThreshold))
	}
	if cfg.Resolver.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("resolver.fuzzy_threshold %v exceeds 1.0", cfg.Resolver.FuzzyThreshold))
	}

	return errors.Join(errs...)
}

func validateProviderName(kind, name string) error {
	if name == "" {
		return nil
	}
	if !slices.Contains(ValidProviderNames[kind], name) {
		return fmt.Errorf("providers.%s.name %q is not a known %s provider; valid values: %v", kind, name, kind, ValidProviderNames[kind])
	}
	return nil
}
