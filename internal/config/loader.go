package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":         {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"transcriber": {"whisper-asr", "openai", "whisper-native"},
	"embeddings":  {"openai", "ollama"},
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

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d is negative", cfg.Server.MaxUploadBytes))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("transcriber", cfg.Providers.Transcriber.Name)
	for _, fb := range cfg.Providers.TranscriberFallbacks {
		validateProviderName("transcriber", fb.Name)
	}
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// Pipeline availability
	if cfg.Providers.Transcriber.Name == "" {
		errs = append(errs, errors.New("providers.transcriber is required"))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; notes will contain the raw transcription only")
	}
	for i, fb := range cfg.Providers.TranscriberFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.transcriber_fallbacks[%d].name is required", i))
		}
	}

	// Vault
	if cfg.Vault.Root == "" {
		errs = append(errs, errors.New("vault.root is required"))
	}

	// Linker
	if cfg.Linker.Enabled {
		if cfg.Providers.Embeddings.Name == "" {
			errs = append(errs, errors.New("linker.enabled requires providers.embeddings"))
		}
		if cfg.Linker.Backend != "" && !cfg.Linker.Backend.IsValid() {
			errs = append(errs, fmt.Errorf("linker.backend %q is invalid; valid values: jsonfile, postgres", cfg.Linker.Backend))
		}
		if cfg.Linker.Backend == IndexPostgres && cfg.Linker.PostgresDSN == "" {
			errs = append(errs, errors.New("linker.postgres_dsn is required when linker.backend is postgres"))
		}
		if cfg.Linker.MinSimilarity < 0 || cfg.Linker.MinSimilarity > 1 {
			errs = append(errs, fmt.Errorf("linker.min_similarity %.2f is out of range [0, 1]", cfg.Linker.MinSimilarity))
		}
		if cfg.Linker.TopK < 0 {
			errs = append(errs, fmt.Errorf("linker.top_k %d is negative", cfg.Linker.TopK))
		}
		if cfg.Linker.Backend == IndexPostgres && cfg.Linker.EmbeddingDimensions <= 0 {
			slog.Warn("linker.embedding_dimensions is not set; defaulting to 1536")
		}
	}

	// Vocabulary
	if cfg.Vocabulary.MinSimilarity < 0 || cfg.Vocabulary.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("vocabulary.min_similarity %.2f is out of range [0, 1]", cfg.Vocabulary.MinSimilarity))
	}

	// Tags
	if cfg.Tags.MaxTags < 0 {
		errs = append(errs, fmt.Errorf("tags.max_tags %d is negative", cfg.Tags.MaxTags))
	}

	return errors.Join(errs...)
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
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
