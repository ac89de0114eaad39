// Package app wires all VoxVault subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, ProcessMemo runs a single voice memo through the pipeline, and
// Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithVaultFS, WithIndex, etc.). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxvault/voxvault/internal/config"
	"github.com/voxvault/voxvault/internal/document"
	"github.com/voxvault/voxvault/internal/health"
	"github.com/voxvault/voxvault/internal/linker"
	"github.com/voxvault/voxvault/internal/observe"
	"github.com/voxvault/voxvault/internal/pipeline"
	"github.com/voxvault/voxvault/internal/semindex"
	"github.com/voxvault/voxvault/internal/semindex/jsonfile"
	"github.com/voxvault/voxvault/internal/semindex/postgres"
	"github.com/voxvault/voxvault/internal/tags"
	"github.com/voxvault/voxvault/internal/template"
	"github.com/voxvault/voxvault/internal/transcript"
	"github.com/voxvault/voxvault/internal/vault"
	"github.com/voxvault/voxvault/pkg/provider/embeddings"
	"github.com/voxvault/voxvault/pkg/provider/llm"
	"github.com/voxvault/voxvault/pkg/provider/stt"
)

// ErrTemplateNotFound reports an explicitly requested template that the store
// does not contain.
var ErrTemplateNotFound = errors.New("template not found")

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry;
// the transcriber slot typically already carries its fallback chain.
type Providers struct {
	LLM         llm.Provider
	Transcriber stt.Provider
	Embeddings  embeddings.Provider
}

// Memo is a single voice recording submitted for processing.
type Memo struct {
	// Audio is the complete encoded recording.
	Audio []byte

	// FileExtension is the recording's container format without the dot
	// (e.g., "webm"). Empty means "webm".
	FileExtension string

	// Language is the ISO 639-1 code to transcribe in, "auto" for detection,
	// or empty for the configured transcriber default.
	Language string

	// TemplateID selects the note template. Empty means the configured default.
	TemplateID string

	// Title optionally names the note; it feeds the {{title}} placeholder in
	// the note name template.
	Title string

	// RecordedAt is when the memo was recorded. Zero means now.
	RecordedAt time.Time
}

// NoteResult describes everything a processed memo produced.
type NoteResult struct {
	// NotePath is the vault-relative path of the written note.
	NotePath string

	// TranscriptPath is set when the raw transcript was persisted.
	TranscriptPath string

	// RecordingPath is set when the original audio was persisted.
	RecordingPath string

	// Transcript is the corrected transcription text.
	Transcript string

	// Tags are the front matter tags, fixed tag and date included.
	Tags []string

	// Related are the vault-relative paths of linked earlier notes.
	Related []string

	// Language is the detected or requested transcription language code.
	Language string
}

// App owns all subsystem lifetimes and runs the memo-to-note pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	templates *template.Store

	// mu guards corrector and tagger, which ApplyConfig may swap while
	// memos are in flight.
	mu        sync.RWMutex
	corrector *transcript.Corrector
	tagger    *tags.Extractor

	linker  *linker.Linker
	index   semindex.Index
	fs      vault.FS
	writer  *vault.Writer
	metrics *observe.Metrics

	now func() time.Time

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithVaultFS injects a vault filesystem instead of opening cfg.Vault.Root.
func WithVaultFS(fs vault.FS) Option {
	return func(a *App) { a.fs = fs }
}

// WithIndex injects a semantic index instead of opening one from config.
func WithIndex(idx semindex.Index) Option {
	return func(a *App) { a.index = idx }
}

// WithTemplates injects a template store instead of loading cfg.Templates.Path.
func WithTemplates(s *template.Store) Option {
	return func(a *App) { a.templates = s }
}

// WithMetrics injects a metrics instance instead of the process-global one.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithClock overrides the time source. Tests use this to pin note paths.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Transcriber == nil {
		return nil, fmt.Errorf("app: no transcriber provider configured")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		now:       time.Now,
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if a.templates == nil {
		store, err := loadTemplates(cfg.Templates.Path)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.templates = store
	}

	a.corrector = transcript.New(cfg.Vocabulary.Terms, cfg.Vocabulary.MinSimilarity)
	a.tagger = a.buildTagger(cfg.Tags)

	if cfg.Linker.Enabled && providers.Embeddings != nil {
		if a.index == nil {
			idx, err := openIndex(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("app: open semantic index: %w", err)
			}
			a.index = idx
			a.closers = append(a.closers, idx.Close)
		}
		a.linker = linker.New(providers.Embeddings, a.index,
			linker.WithTopK(cfg.Linker.TopK),
			linker.WithMinSimilarity(cfg.Linker.MinSimilarity),
			linker.WithMetrics(a.metrics, cfg.Providers.Embeddings.Name),
		)
	}

	if a.fs == nil {
		fs, err := vault.NewDirFS(cfg.Vault.Root)
		if err != nil {
			return nil, fmt.Errorf("app: open vault: %w", err)
		}
		a.fs = fs
	}
	writerOpts := []vault.Option{
		vault.WithFolders(cfg.Vault.NotesFolder, cfg.Vault.TranscriptsFolder, cfg.Vault.RecordingsFolder),
	}
	if cfg.Vault.NoteNameTemplate != "" {
		writerOpts = append(writerOpts, vault.WithNoteNameTemplate(cfg.Vault.NoteNameTemplate))
	}
	a.writer = vault.NewWriter(a.fs, writerOpts...)

	return a, nil
}

// buildTagger constructs the tag extractor from its config block.
func (a *App) buildTagger(cfg config.TagsConfig) *tags.Extractor {
	var opts []tags.Option
	if cfg.FixedTag != "" {
		opts = append(opts, tags.WithFixedTag(cfg.FixedTag))
	}
	if cfg.MaxTags > 0 {
		opts = append(opts, tags.WithMaxTags(cfg.MaxTags))
	}
	if cfg.Prompt != "" {
		opts = append(opts, tags.WithPrompt(cfg.Prompt))
	}
	opts = append(opts, tags.WithClock(func() time.Time { return a.now() }))
	return tags.New(a.providers.LLM, opts...)
}

// ApplyConfig applies hot-reloadable configuration changes to a running app.
// Only the vocabulary and tag settings take effect without a restart; the
// caller handles log-level changes.
func (a *App) ApplyConfig(d config.ConfigDiff, cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if d.VocabularyChanged {
		a.corrector = transcript.New(cfg.Vocabulary.Terms, cfg.Vocabulary.MinSimilarity)
		slog.Info("app: vocabulary reloaded", "terms", len(cfg.Vocabulary.Terms))
	}
	if d.TagsChanged {
		a.tagger = a.buildTagger(cfg.Tags)
		slog.Info("app: tag settings reloaded")
	}
}

// loadTemplates loads the template file, or an empty store (whose Default is
// the builtin template) when no path is configured.
func loadTemplates(path string) (*template.Store, error) {
	if path == "" {
		return template.NewStore(nil)
	}
	return template.LoadStore(path)
}

// openIndex opens the configured semantic index backend.
func openIndex(ctx context.Context, cfg *config.Config) (semindex.Index, error) {
	switch cfg.Linker.Backend {
	case config.IndexPostgres:
		dims := cfg.Linker.EmbeddingDimensions
		if dims == 0 {
			dims = postgres.DefaultDimensions
		}
		return postgres.Open(ctx, cfg.Linker.PostgresDSN, dims)
	default:
		path := cfg.Linker.Path
		if path == "" {
			path = filepath.Join(".voxvault", "index.json")
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Vault.Root, path)
		}
		return jsonfile.Open(path)
	}
}

// ProcessMemo runs one recording through the full pipeline: transcription,
// vocabulary correction, section generation, tag extraction, semantic
// linking, document assembly, and the vault write.
//
// Transcript and recording persistence follow the vault configuration and
// happen before section generation, so a failing LLM never loses the speech
// content. LLM failures during section generation abort with an error; tag
// extraction and linking degrade gracefully.
func (a *App) ProcessMemo(ctx context.Context, memo Memo) (*NoteResult, error) {
	start := a.now()
	at := memo.RecordedAt
	if at.IsZero() {
		at = start
	}

	tpl, err := a.resolveTemplate(memo.TemplateID)
	if err != nil {
		return nil, err
	}

	res, err := a.transcribe(ctx, memo)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, fmt.Errorf("app: transcription produced no text")
	}

	a.mu.RLock()
	corrector, tagger := a.corrector, a.tagger
	a.mu.RUnlock()

	corrected, corrections := corrector.Correct(res.Text)
	if len(corrections) > 0 {
		slog.Debug("app: vocabulary corrections applied", "count", len(corrections))
	}

	result := &NoteResult{
		Transcript: corrected,
		Language:   languageCode(res, memo.Language),
	}

	// Persist the raw material first. Both writes are independent.
	var g errgroup.Group
	if a.cfg.Vault.KeepTranscripts {
		g.Go(func() error {
			p, err := a.writer.WriteTranscript(corrected, at)
			if err != nil {
				return fmt.Errorf("write transcript: %w", err)
			}
			result.TranscriptPath = p
			return nil
		})
	}
	if a.cfg.Vault.KeepRecordings {
		g.Go(func() error {
			p, err := a.writer.WriteRecording(memo.Audio, memo.FileExtension, at)
			if err != nil {
				return fmt.Errorf("write recording: %w", err)
			}
			result.RecordingPath = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	body, err := a.generateBody(ctx, corrected, tpl, res)
	if err != nil {
		return nil, err
	}

	result.Tags = tagger.Extract(ctx, corrected)

	var vector []float32
	if a.linker != nil {
		result.Related, vector = a.linker.Related(ctx, corrected)
	}

	sources := make([]string, 0, 2)
	if result.TranscriptPath != "" {
		sources = append(sources, result.TranscriptPath)
	}
	if result.RecordingPath != "" {
		sources = append(sources, result.RecordingPath)
	}
	content := document.Assemble(document.Note{
		Tags:    result.Tags,
		Sources: sources,
		Related: result.Related,
		Body:    body,
	})

	notePath, err := a.writer.WriteNote(content, memo.Title, at)
	if err != nil {
		return nil, fmt.Errorf("app: write note: %w", err)
	}
	result.NotePath = notePath

	if a.linker != nil {
		a.linker.Remember(ctx, notePath, noteTitle(memo.Title, notePath), vector)
	}

	a.metrics.PipelineDuration.Record(ctx, a.now().Sub(start).Seconds())
	a.metrics.RecordNoteCreated(ctx, tpl.ID)
	slog.Info("app: note created",
		"path", notePath,
		"template", tpl.ID,
		"tags", len(result.Tags),
		"related", len(result.Related),
	)
	return result, nil
}

// resolveTemplate picks the template for a memo: an explicit ID must exist,
// otherwise the configured default, otherwise the store default.
func (a *App) resolveTemplate(id string) (template.Template, error) {
	if id == "" {
		id = a.cfg.Templates.Default
	}
	if id == "" {
		return a.templates.Default(), nil
	}
	tpl, ok := a.templates.Get(id)
	if !ok {
		return template.Template{}, fmt.Errorf("app: template %q: %w", id, ErrTemplateNotFound)
	}
	return tpl, nil
}

// transcribe submits the audio and records transcription timing.
func (a *App) transcribe(ctx context.Context, memo Memo) (*stt.Result, error) {
	lang := memo.Language
	if lang == "" {
		lang = a.cfg.Providers.Transcriber.Language
	}
	req := stt.Request{
		Language:      lang,
		FileExtension: memo.FileExtension,
	}

	begin := a.now()
	res, err := a.providers.Transcriber.Transcribe(ctx, memo.Audio, req)
	a.metrics.TranscriptionDuration.Record(ctx, a.now().Sub(begin).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	a.metrics.RecordProviderRequest(ctx, a.cfg.Providers.Transcriber.Name, "transcriber", status)
	if err != nil {
		a.metrics.RecordProviderError(ctx, a.cfg.Providers.Transcriber.Name, "transcriber")
		return nil, fmt.Errorf("app: transcribe: %w", err)
	}
	if res == nil {
		return nil, fmt.Errorf("app: transcriber returned no result")
	}
	return res, nil
}

// generateBody runs the section pipeline with per-memo language routing.
func (a *App) generateBody(ctx context.Context, corrected string, tpl template.Template, res *stt.Result) (string, error) {
	opts := []pipeline.Option{
		pipeline.WithOptionalSections(a.cfg.Vault.IncludeOptionalSections),
	}
	if res.DetectedLanguage != "" {
		opts = append(opts, pipeline.WithLanguage(res.DetectedLanguage))
	}
	proc := pipeline.New(a.providers.LLM, opts...)

	begin := a.now()
	body, _, err := proc.Process(ctx, corrected, tpl)
	a.metrics.CompletionDuration.Record(ctx, a.now().Sub(begin).Seconds())
	if a.providers.LLM != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		a.metrics.RecordProviderRequest(ctx, a.cfg.Providers.LLM.Name, "llm", status)
	}
	if err != nil {
		a.metrics.RecordProviderError(ctx, a.cfg.Providers.LLM.Name, "llm")
		return "", fmt.Errorf("app: %w", err)
	}
	return body, nil
}

// Checkers returns the readiness checks for the configured subsystems: the
// vault root, the transcriber endpoint when it has one, the LLM provider when
// the config names one, and the semantic index when the linker is enabled.
// The ingest server registers these under /readyz.
func (a *App) Checkers() []health.Checker {
	checks := []health.Checker{health.VaultRoot(a.cfg.Vault.Root)}
	if url := a.cfg.Providers.Transcriber.BaseURL; url != "" {
		checks = append(checks, health.Endpoint("transcriber", url, nil))
	}
	if name := a.cfg.Providers.LLM.Name; name != "" {
		checks = append(checks, health.Ping("llm", func(context.Context) error {
			if a.providers.LLM == nil {
				return fmt.Errorf("provider %q configured but not constructed", name)
			}
			return nil
		}))
	}
	if a.index != nil {
		checks = append(checks, health.Ping("index", func(ctx context.Context) error {
			if p, ok := a.index.(interface{ Ping(context.Context) error }); ok {
				return p.Ping(ctx)
			}
			return nil
		}))
	}
	return checks
}

// Templates exposes the loaded template store, e.g. for the ingest server's
// template listing endpoint.
func (a *App) Templates() *template.Store { return a.templates }

// Index returns the semantic index, or nil when the linker is disabled. The
// MCP note-search tool queries it directly.
func (a *App) Index() semindex.Index { return a.index }

// Embedder returns the embeddings provider, or nil when not configured.
func (a *App) Embedder() embeddings.Provider { return a.providers.Embeddings }

// Shutdown releases all resources in reverse-dependency order. Safe to call
// more than once.
func (a *App) Shutdown() error {
	var err error
	a.stopOnce.Do(func() {
		for _, c := range a.closers {
			if cerr := c(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

// languageCode picks the most specific language code available.
func languageCode(res *stt.Result, requested string) string {
	if res.LanguageCode != "" {
		return res.LanguageCode
	}
	if requested != "" && requested != stt.LanguageAuto {
		return requested
	}
	return ""
}

// noteTitle derives an index title for a note without an explicit one.
func noteTitle(title, path string) string {
	if title != "" {
		return title
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
