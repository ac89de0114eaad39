package config

import (
	"strings"
	"testing"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  transcriber:
    name: whisper-asr
    base_url: http://localhost:9000
    language: auto
  transcriber_fallbacks:
    - name: openai
      api_key: sk-test
  embeddings:
    name: ollama
    model: nomic-embed-text
vault:
  root: /home/me/vault
  notes_folder: "journal/{{date:2006}}/{{date:01}}"
  note_name_template: "{{date:2006-01-02 15-04-05}}"
  keep_transcripts: true
  keep_recordings: true
linker:
  enabled: true
  backend: jsonfile
  top_k: 3
vocabulary:
  terms: [kubernetes, pgvector]
tags:
  fixed_tag: voice-memo
  max_tags: 4
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Providers.Transcriber.Name != "whisper-asr" {
		t.Errorf("transcriber name = %q", cfg.Providers.Transcriber.Name)
	}
	if len(cfg.Providers.TranscriberFallbacks) != 1 {
		t.Fatalf("got %d fallbacks, want 1", len(cfg.Providers.TranscriberFallbacks))
	}
	if !cfg.Vault.KeepTranscripts {
		t.Error("keep_transcripts should be true")
	}
	if cfg.Linker.Backend != IndexJSONFile {
		t.Errorf("linker backend = %q", cfg.Linker.Backend)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	const doc = `
vault:
  root: /v
  keep_transkripts: true
providers:
  transcriber:
    name: whisper-asr
`
	if _, err := LoadFromReader(strings.NewReader(doc)); err == nil {
		t.Fatal("expected decode error for unknown field")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Server: ServerConfig{LogLevel: "loud"},
		Linker: LinkerConfig{
			Enabled:       true,
			Backend:       IndexPostgres,
			MinSimilarity: 1.5,
		},
		Tags: TagsConfig{MaxTags: -1},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{
		"server.log_level",
		"providers.transcriber is required",
		"vault.root is required",
		"linker.enabled requires providers.embeddings",
		"linker.postgres_dsn is required",
		"linker.min_similarity",
		"tags.max_tags",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestValidate_MinimalConfig(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Providers: ProvidersConfig{Transcriber: ProviderEntry{Name: "whisper-asr"}},
		Vault:     VaultConfig{Root: "/v"},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_FallbackNeedsName(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Providers: ProvidersConfig{
			Transcriber:          ProviderEntry{Name: "whisper-asr"},
			TranscriberFallbacks: []ProviderEntry{{APIKey: "sk"}},
		},
		Vault: VaultConfig{Root: "/v"},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "transcriber_fallbacks[0].name") {
		t.Fatalf("Validate = %v", err)
	}
}
