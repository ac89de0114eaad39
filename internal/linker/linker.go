// Package linker connects new notes to semantically similar earlier notes.
// All operations are best-effort: a linker failure never blocks note creation.
package linker

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxvault/voxvault/internal/observe"
	"github.com/voxvault/voxvault/internal/semindex"
	"github.com/voxvault/voxvault/pkg/provider/embeddings"
)

const (
	// DefaultTopK is how many related notes to link.
	DefaultTopK = 5

	// DefaultMinSimilarity filters candidates below this cosine similarity.
	DefaultMinSimilarity = 0.55
)

// Option is a functional option for configuring a [Linker].
type Option func(*Linker)

// WithTopK caps how many related notes are returned.
func WithTopK(k int) Option {
	return func(l *Linker) {
		if k > 0 {
			l.topK = k
		}
	}
}

// WithMinSimilarity sets the similarity floor for related notes.
func WithMinSimilarity(min float64) Option {
	return func(l *Linker) {
		if min > 0 {
			l.minSimilarity = min
		}
	}
}

// WithMetrics records embedding latency and request counts under the given
// provider name. Without it, embed calls go unmeasured.
func WithMetrics(m *observe.Metrics, providerName string) Option {
	return func(l *Linker) {
		l.metrics = m
		l.providerName = providerName
	}
}

// Linker embeds note text and resolves related notes against an index.
type Linker struct {
	embedder      embeddings.Provider
	index         semindex.Index
	topK          int
	minSimilarity float64
	metrics       *observe.Metrics
	providerName  string
}

// New builds a Linker over an embeddings provider and an index.
func New(embedder embeddings.Provider, index semindex.Index, opts ...Option) *Linker {
	l := &Linker{
		embedder:      embedder,
		index:         index,
		topK:          DefaultTopK,
		minSimilarity: DefaultMinSimilarity,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Related embeds text and returns the vault-relative paths of earlier notes
// that are semantically close, along with the embedding vector so the caller
// can pass it to [Linker.Remember] once the new note has a path.
//
// Both steps degrade gracefully: on any failure the failure is logged at warn
// level and Related returns whatever it has.
func (l *Linker) Related(ctx context.Context, text string) ([]string, []float32) {
	begin := time.Now()
	vector, err := l.embedder.Embed(ctx, text)
	if l.metrics != nil {
		l.metrics.EmbeddingDuration.Record(ctx, time.Since(begin).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		l.metrics.RecordProviderRequest(ctx, l.providerName, "embeddings", status)
	}
	if err != nil {
		slog.Warn("linker: embedding failed, skipping related notes", "err", err)
		return nil, nil
	}

	var related []string
	results, err := l.index.Search(ctx, vector, l.topK, l.minSimilarity)
	if err != nil {
		slog.Warn("linker: index search failed", "err", err)
	} else {
		for _, r := range results {
			related = append(related, r.Path)
		}
	}
	return related, vector
}

// Remember indexes a written note under its final vault-relative path so
// future notes can find it. A nil vector is ignored; it means the embedding
// step already failed and was logged.
func (l *Linker) Remember(ctx context.Context, path, title string, vector []float32) {
	if vector == nil {
		return
	}
	if err := l.index.Add(ctx, semindex.Entry{
		Path:      path,
		Title:     title,
		Embedding: vector,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		slog.Warn("linker: indexing note failed", "path", path, "err", err)
	}
}

// Link is the one-shot form of [Linker.Related] followed by
// [Linker.Remember], for callers that already know the note's path. Earlier
// entries indexed under the same path are excluded from the result.
func (l *Linker) Link(ctx context.Context, path, title, text string) []string {
	related, vector := l.Related(ctx, text)
	filtered := related[:0]
	for _, p := range related {
		if p != path {
			filtered = append(filtered, p)
		}
	}
	l.Remember(ctx, path, title, vector)
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}
