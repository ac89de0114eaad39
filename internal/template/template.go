// Package template provides the journal template model and store for VoxVault.
//
// A template describes how a transcript becomes a journal document: an ordered
// list of sections, each carrying an optional generation prompt and an output
// context string with {{token}} placeholders. Templates are supplied by
// configuration and never mutated by a pipeline run.
package template

import (
	"fmt"
	"strings"
)

// Section is one unit of a template: an optional model prompt plus an output
// context string.
type Section struct {
	// Title is the section heading, also used (slugified) as a variable name
	// under which the section's generated text is stored.
	Title string `yaml:"title"`

	// Prompt is the generation instruction sent to the LLM together with the
	// transcript. When empty, no model call is made and Context is rendered
	// using only pre-existing variables.
	Prompt string `yaml:"prompt"`

	// Context is the output block appended to the document, with zero or more
	// {{token}} placeholders ({{response}}, {{transcription}}, or a slugified
	// earlier section title).
	Context string `yaml:"context"`

	// Optional marks a section that may be skipped: by configuration, or by the
	// model itself answering with the skip sentinel.
	Optional bool `yaml:"optional"`
}

// Template is a user-defined recipe describing how a transcript becomes a
// journal document.
type Template struct {
	// ID uniquely identifies the template within a store.
	ID string `yaml:"id"`

	// Name is the human-readable template name.
	Name string `yaml:"name"`

	// Description explains what kind of memos the template suits.
	Description string `yaml:"description"`

	// Sections is the ordered list of sections processed per run.
	Sections []Section `yaml:"sections"`
}

// Store holds an ordered list of templates with unique IDs.
// A Store is read-only after construction and safe for concurrent use.
type Store struct {
	templates []Template
	byID      map[string]int
}

// NewStore builds a Store from templates, validating that every template has a
// non-empty unique ID. The input order is preserved; the first template is the
// store default.
func NewStore(templates []Template) (*Store, error) {
	s := &Store{
		templates: make([]Template, len(templates)),
		byID:      make(map[string]int, len(templates)),
	}
	copy(s.templates, templates)

	for i, tpl := range s.templates {
		if tpl.ID == "" {
			return nil, fmt.Errorf("template: templates[%d] has no id", i)
		}
		if prev, ok := s.byID[tpl.ID]; ok {
			return nil, fmt.Errorf("template: id %q is a duplicate of templates[%d]", tpl.ID, prev)
		}
		s.byID[tpl.ID] = i
	}
	return s, nil
}

// Get returns the template with the given id.
func (s *Store) Get(id string) (Template, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Template{}, false
	}
	return s.templates[i], true
}

// Default returns the first template in the store, or the built-in default
// when the store is empty.
func (s *Store) Default() Template {
	if len(s.templates) == 0 {
		return Builtin()
	}
	return s.templates[0]
}

// All returns all templates in store order. The returned slice is a copy.
func (s *Store) All() []Template {
	out := make([]Template, len(s.templates))
	copy(out, s.templates)
	return out
}

// Len returns the number of templates in the store.
func (s *Store) Len() int { return len(s.templates) }

// Builtin returns the template used when no templates are configured: a single
// summary section followed by the raw transcription.
func Builtin() Template {
	return Template{
		ID:          "default",
		Name:        "Voice Memo",
		Description: "Summary plus full transcription.",
		Sections: []Section{
			{
				Title:   "Summary",
				Prompt:  "Summarize the following voice memo in a few concise sentences. Keep the speaker's language.",
				Context: "## Summary\n{{response}}\n",
			},
			{
				Title:   "Transcription",
				Context: "## Transcription\n{{transcription}}\n",
			},
		},
	}
}

// Slug converts a section title into a variable name: lower-cased, with runs
// of non-alphanumeric characters collapsed to single hyphens.
func Slug(title string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
