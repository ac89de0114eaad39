// Package pipeline turns a corrected transcript into a rendered document body
// by running the sections of a journal template in order.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxvault/voxvault/internal/template"
	"github.com/voxvault/voxvault/pkg/provider/llm"
	"github.com/voxvault/voxvault/pkg/types"
)

// SkipSentinel is the token an optional section's model is instructed to echo
// when the transcript offers nothing for that section. A trimmed response
// equal to the sentinel discards the section.
const SkipSentinel = "NO_RELEVANT_CONTENT"

const skipInstruction = "If the voice memo contains nothing relevant to this task, reply with exactly " +
	SkipSentinel + " and nothing else.\n\n"

// Option is a functional option for configuring a [Processor].
type Option func(*Processor)

// WithOptionalSections enables processing of sections marked optional.
// They are skipped outright by default.
func WithOptionalSections(include bool) Option {
	return func(p *Processor) {
		p.includeOptional = include
	}
}

// WithLanguage appends a language hint to every section prompt. Ignored for
// empty or "auto" values.
func WithLanguage(lang string) Option {
	return func(p *Processor) {
		if lang != "" && lang != "auto" {
			p.language = lang
		}
	}
}

// WithTemperature sets the sampling temperature for section completions.
// Zero keeps the provider default.
func WithTemperature(temp float64) Option {
	return func(p *Processor) {
		p.temperature = temp
	}
}

// Processor renders journal templates section by section. Sections run
// sequentially so that later sections can reference earlier output through
// their slugified titles.
type Processor struct {
	llm             llm.Provider
	includeOptional bool
	language        string
	temperature     float64
}

// New builds a Processor. provider may be nil, in which case prompted
// sections are skipped and the document degrades to its static sections.
func New(provider llm.Provider, opts ...Option) *Processor {
	p := &Processor{llm: provider}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs tpl over transcription and returns the rendered document body
// together with the final variable map.
//
// Any completion error aborts the run; no partial body is returned. A
// template that yields no output at all falls back to a minimal document
// containing only the transcription.
func (p *Processor) Process(ctx context.Context, transcription string, tpl template.Template) (string, template.Variables, error) {
	vars := template.Variables{"transcription": transcription}
	var body strings.Builder

	for _, sec := range tpl.Sections {
		if sec.Optional && !p.includeOptional {
			continue
		}

		if sec.Prompt != "" {
			if p.llm == nil {
				continue
			}
			text, err := p.generate(ctx, transcription, sec)
			if err != nil {
				return "", nil, fmt.Errorf("pipeline: section %q: %w", sec.Title, err)
			}
			if sec.Optional && strings.TrimSpace(text) == SkipSentinel {
				continue
			}
			vars["response"] = text
			vars[template.Slug(sec.Title)] = text
		}

		body.WriteString(template.Render(sec.Context, vars))
	}

	out := body.String()
	if strings.TrimSpace(out) == "" {
		out = "## Transcription\n\n" + transcription + "\n"
	}
	return out, vars, nil
}

// generate performs the completion call for one section. The section prompt
// becomes the system prompt and the transcript is sent as the user message.
func (p *Processor) generate(ctx context.Context, transcription string, sec template.Section) (string, error) {
	prompt := sec.Prompt
	if sec.Optional {
		prompt = skipInstruction + prompt
	}
	if p.language != "" {
		prompt += "\n\nRespond in " + p.language + "."
	}

	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompt,
		Messages: []types.Message{
			{Role: "user", Content: transcription},
		},
		Temperature: p.temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
