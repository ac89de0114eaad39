// Package transcript post-processes raw speech-to-text output before it
// enters the journaling pipeline. Its single stage restores the canonical
// spelling of configured vocabulary terms that speech models commonly mangle.
package transcript

import (
	"strings"

	"github.com/voxvault/voxvault/internal/transcript/phonetic"
)

// Correction records a single vocabulary replacement applied to a transcript.
type Correction struct {
	// Original is the transcript text that was replaced.
	Original string

	// Corrected is the canonical vocabulary term.
	Corrected string

	// Confidence is the Jaro-Winkler similarity of the match.
	Confidence float64
}

// Matcher finds the vocabulary term closest to a transcript word or phrase.
// Implemented by [phonetic.Matcher].
type Matcher interface {
	Match(word string, terms []string) (corrected string, confidence float64, matched bool)
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithMatcher replaces the default phonetic matcher.
func WithMatcher(m Matcher) Option {
	return func(c *Corrector) {
		c.matcher = m
	}
}

// Corrector restores canonical vocabulary spellings in transcripts.
// It is safe for concurrent use; the term list is read-only after construction.
type Corrector struct {
	matcher  Matcher
	terms    []string
	maxWords int
}

// New builds a Corrector over the given vocabulary terms. minSimilarity sets
// the Jaro-Winkler threshold below which candidates are rejected; zero applies
// the matcher defaults.
func New(terms []string, minSimilarity float64, opts ...Option) *Corrector {
	c := &Corrector{
		terms:    terms,
		maxWords: maxWordCount(terms),
	}
	for _, o := range opts {
		o(c)
	}
	if c.matcher == nil {
		var phOpts []phonetic.Option
		if minSimilarity > 0 {
			phOpts = append(phOpts,
				phonetic.WithPhoneticThreshold(minSimilarity),
				phonetic.WithFuzzyThreshold(minSimilarity),
			)
		}
		c.matcher = phonetic.New(phOpts...)
	}
	return c
}

// Correct rewrites text so that words or phrases matching a vocabulary term
// take the term's canonical spelling. It returns the rewritten text and the
// corrections applied, in order of appearance.
//
// The walk mirrors multi-word terms: at each token position, n-gram windows
// from the longest term size down to 1 are tested, and the longest match wins
// so that phrase terms take precedence over partial single-word matches.
// Punctuation surrounding a matched window is preserved.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if len(c.terms) == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var output []string
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		maxN := c.maxWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window, leading, trailing := stripWindow(tokens[i : i+n])
			if window == "" {
				break
			}
			term, conf, ok := c.matcher.Match(window, c.terms)
			if !ok {
				continue
			}

			output = append(output, leading+term+trailing)
			corrections = append(corrections, Correction{
				Original:   window,
				Corrected:  term,
				Confidence: conf,
			})
			i += n
			matched = true
			break
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	return strings.Join(output, " "), corrections
}

// stripWindow joins tokens into a match candidate with surrounding punctuation
// removed, returning the candidate along with the leading punctuation of the
// first token and the trailing punctuation of the last so both can be
// reattached after a replacement.
func stripWindow(tokens []string) (window, leading, trailing string) {
	parts := make([]string, 0, len(tokens))
	for idx, tok := range tokens {
		lead := strings.TrimLeftFunc(tok, isPunct)
		core := strings.TrimRightFunc(lead, isPunct)
		if idx == 0 {
			leading = tok[:len(tok)-len(lead)]
		}
		if idx == len(tokens)-1 {
			trailing = lead[len(core):]
		}
		if core != "" {
			parts = append(parts, core)
		}
	}
	return strings.Join(parts, " "), leading, trailing
}

func isPunct(r rune) bool {
	switch r {
	case '.', ',', ';', ':', '!', '?', '"', '\'', '(', ')', '[', ']':
		return true
	}
	return false
}

// maxWordCount returns the maximum number of whitespace-separated words in
// any term. Returns 1 when terms is empty.
func maxWordCount(terms []string) int {
	max := 1
	for _, t := range terms {
		if n := len(strings.Fields(t)); n > max {
			max = n
		}
	}
	return max
}
