// Command voxvault turns voice memos into structured journal notes.
//
// Modes:
//
//	voxvault memo.webm [more.webm …]   journal recordings and exit
//	voxvault -serve                    run the HTTP ingest server
//	voxvault -mcp                      serve MCP tools on stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/voxvault/voxvault/internal/app"
	"github.com/voxvault/voxvault/internal/config"
	"github.com/voxvault/voxvault/internal/health"
	"github.com/voxvault/voxvault/internal/mcpserver"
	"github.com/voxvault/voxvault/internal/observe"
	"github.com/voxvault/voxvault/internal/resilience"
	"github.com/voxvault/voxvault/internal/server"
	"github.com/voxvault/voxvault/pkg/provider/embeddings"
	ollamaembed "github.com/voxvault/voxvault/pkg/provider/embeddings/ollama"
	oaembed "github.com/voxvault/voxvault/pkg/provider/embeddings/openai"
	"github.com/voxvault/voxvault/pkg/provider/llm"
	"github.com/voxvault/voxvault/pkg/provider/llm/anyllm"
	"github.com/voxvault/voxvault/pkg/provider/stt"
	sttnative "github.com/voxvault/voxvault/pkg/provider/stt/native"
	sttopenai "github.com/voxvault/voxvault/pkg/provider/stt/openai"
	"github.com/voxvault/voxvault/pkg/provider/stt/whisperasr"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	serve := flag.Bool("serve", false, "run the HTTP ingest server")
	mcpMode := flag.Bool("mcp", false, "serve MCP tools on stdio")
	language := flag.String("language", "", "transcription language for one-shot mode (code or \"auto\")")
	templateID := flag.String("template", "", "note template id for one-shot mode")
	title := flag.String("title", "", "note title for one-shot mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxvault: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxvault: %v\n", err)
		}
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	// MCP mode owns stdout for the protocol; logs always go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("voxvault starting",
		"version", version,
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		if err := application.Shutdown(); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}()

	switch {
	case *mcpMode:
		return runMCP(ctx, application)
	case *serve:
		return runServer(ctx, *configPath, cfg, application, logLevel)
	default:
		files := flag.Args()
		if len(files) == 0 {
			fmt.Fprintln(os.Stderr, "voxvault: no recordings given; pass audio files, -serve, or -mcp")
			return 2
		}
		return runOnce(ctx, application, files, *language, *templateID, *title)
	}
}

// runOnce journals each recording in order and prints the note paths.
func runOnce(ctx context.Context, application *app.App, files []string, language, templateID, title string) int {
	for _, file := range files {
		audio, err := os.ReadFile(file)
		if err != nil {
			slog.Error("cannot read recording", "file", file, "err", err)
			return 1
		}
		res, err := application.ProcessMemo(ctx, app.Memo{
			Audio:         audio,
			FileExtension: strings.TrimPrefix(filepath.Ext(file), "."),
			Language:      language,
			TemplateID:    templateID,
			Title:         title,
		})
		if err != nil {
			slog.Error("memo processing failed", "file", file, "err", err)
			return 1
		}
		fmt.Println(res.NotePath)
	}
	return 0
}

// runServer runs the HTTP ingest server with config hot reload.
func runServer(ctx context.Context, configPath string, cfg *config.Config, application *app.App, logLevel *slog.LevelVar) int {
	watcher, err := config.NewWatcher(configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if !d.Any() {
			return
		}
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		application.ApplyConfig(d, new)
	})
	if err != nil {
		slog.Warn("config hot reload unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	opts := []server.Option{server.WithHealth(health.New(application.Checkers()...))}
	if cfg.Server.MaxUploadBytes > 0 {
		opts = append(opts, server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes))
	}

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := server.New(addr, application, application.Templates(), opts...)

	slog.Info("server ready — press Ctrl+C to shut down")
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// runMCP serves the MCP tools on stdio until the client disconnects.
func runMCP(ctx context.Context, application *app.App) int {
	svc := mcpserver.New(application, application.Index(), application.Embedder())
	if err := svc.Run(ctx, version); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("mcp server error", "err", err)
		return 1
	}
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── Transcribers ──────────────────────────────────────────────────────────

	reg.RegisterTranscriber("whisper-asr", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisperasr.Option
		if entry.Language != "" {
			opts = append(opts, whisperasr.WithLanguage(entry.Language))
		}
		if optBool(entry.Options, "diarize") {
			opts = append(opts, whisperasr.WithDiarization(true))
		}
		return whisperasr.New(entry.BaseURL, opts...)
	})

	reg.RegisterTranscriber("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterTranscriber("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []sttnative.Option
		if entry.Language != "" {
			opts = append(opts, sttnative.WithLanguage(entry.Language))
		}
		return sttnative.New(modelPath, opts...)
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
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct. The transcriber is wrapped
// in a circuit-breaking fallback chain when fallbacks are configured.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = p
		caps := p.Capabilities()
		slog.Info("provider created",
			"kind", "llm",
			"name", name,
			"model", cfg.Providers.LLM.Model,
			"context_window", caps.ContextWindow,
			"max_output_tokens", caps.MaxOutputTokens,
		)
	}

	primaryName := cfg.Providers.Transcriber.Name
	primary, err := reg.CreateTranscriber(cfg.Providers.Transcriber)
	if err != nil {
		return nil, fmt.Errorf("create transcriber provider %q: %w", primaryName, err)
	}
	slog.Info("provider created", "kind", "transcriber", "name", primaryName)

	if len(cfg.Providers.TranscriberFallbacks) == 0 {
		ps.Transcriber = primary
	} else {
		chain := resilience.NewTranscriber(primary, primaryName, resilience.FallbackConfig{})
		for _, entry := range cfg.Providers.TranscriberFallbacks {
			fb, err := reg.CreateTranscriber(entry)
			if err != nil {
				return nil, fmt.Errorf("create fallback transcriber %q: %w", entry.Name, err)
			}
			chain.AddFallback(entry.Name, fb)
			slog.Info("provider created", "kind", "transcriber-fallback", "name", entry.Name)
		}
		ps.Transcriber = chain
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		ps.Embeddings = p
		slog.Info("provider created", "kind", "embeddings", "name", name, "model", cfg.Providers.Embeddings.Model)
	}

	return ps, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optBool extracts a bool value from a provider Options map[string]any.
func optBool(opts map[string]any, key string) bool {
	if opts == nil {
		return false
	}
	b, _ := opts[key].(bool)
	return b
}
