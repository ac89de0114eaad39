// Package tags extracts front-matter keywords from transcripts.
package tags

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voxvault/voxvault/pkg/provider/llm"
	"github.com/voxvault/voxvault/pkg/types"
)

const (
	// DefaultFixedTag is injected into every note unless overridden.
	DefaultFixedTag = "voice-memo"

	// DefaultMaxTags caps model-extracted tags per note.
	DefaultMaxTags = 5
)

const defaultPrompt = `Extract up to %d short topic tags from the following voice memo transcript.
Respond with a JSON array of lowercase strings and nothing else.
Example: ["work", "travel", "family"]`

// Option is a functional option for configuring an [Extractor].
type Option func(*Extractor)

// WithFixedTag overrides the tag injected into every note.
func WithFixedTag(tag string) Option {
	return func(e *Extractor) {
		if tag != "" {
			e.fixedTag = tag
		}
	}
}

// WithMaxTags caps the number of model-extracted tags.
func WithMaxTags(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTags = n
		}
	}
}

// WithPrompt replaces the built-in extraction prompt. The prompt may contain
// one %d verb for the tag cap.
func WithPrompt(prompt string) Option {
	return func(e *Extractor) {
		if prompt != "" {
			e.prompt = prompt
		}
	}
}

// WithClock overrides the time source used for the date tag. For tests.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// Extractor derives keyword tags from a transcript with a single completion
// call. Extraction is best-effort: any failure degrades to the fixed tags
// rather than blocking note creation.
type Extractor struct {
	llm      llm.Provider
	fixedTag string
	maxTags  int
	prompt   string
	now      func() time.Time
}

// New builds an Extractor. provider may be nil, in which case only the fixed
// tag and date tag are produced.
func New(provider llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{
		llm:      provider,
		fixedTag: DefaultFixedTag,
		maxTags:  DefaultMaxTags,
		prompt:   defaultPrompt,
		now:      time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract returns the tag list for a note: the fixed tag, the ISO date, and
// up to maxTags model-extracted keywords. The model response is expected to
// be a JSON array of strings; anything unparseable falls back to a single
// generic tag, logged at warn level.
func (e *Extractor) Extract(ctx context.Context, transcription string) []string {
	out := []string{e.fixedTag, e.now().Format("2006-01-02")}

	if e.llm == nil || strings.TrimSpace(transcription) == "" {
		return out
	}

	extracted, err := e.extractWithModel(ctx, transcription)
	if err != nil {
		slog.Warn("tags: extraction failed, using fallback tags", "err", err)
		return append(out, "memo")
	}
	return append(out, extracted...)
}

func (e *Extractor) extractWithModel(ctx context.Context, transcription string) ([]string, error) {
	prompt := e.prompt
	if strings.Contains(prompt, "%d") {
		prompt = fmt.Sprintf(prompt, e.maxTags)
	}

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompt,
		Messages: []types.Message{
			{Role: "user", Content: transcription},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tags: completion: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("tags: empty completion response")
	}

	parsed, err := parseTagArray(resp.Content)
	if err != nil {
		return nil, err
	}

	tags := make([]string, 0, e.maxTags)
	seen := map[string]struct{}{e.fixedTag: {}}
	for _, tag := range parsed {
		tag = normalize(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == e.maxTags {
			break
		}
	}
	return tags, nil
}

// parseTagArray decodes a JSON array of strings, tolerating surrounding prose
// by scanning for the outermost brackets.
func parseTagArray(content string) ([]string, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("tags: no JSON array in response")
	}

	var tags []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &tags); err != nil {
		return nil, fmt.Errorf("tags: decode response: %w", err)
	}
	return tags, nil
}

// normalize lowercases a tag and replaces inner whitespace with hyphens so
// tags stay single tokens in front matter.
func normalize(tag string) string {
	tag = strings.TrimSpace(strings.ToLower(tag))
	tag = strings.TrimPrefix(tag, "#")
	return strings.Join(strings.Fields(tag), "-")
}
