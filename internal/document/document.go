// Package document assembles finished journal notes from front matter and a
// rendered body.
package document

import "strings"

// Note is the material for one finished document.
type Note struct {
	// Tags become the front matter tags list, in order.
	Tags []string

	// Sources are vault-relative paths to persisted artifacts (transcript,
	// recording) linked from the front matter as wiki-links.
	Sources []string

	// Related are vault-relative paths to semantically similar earlier notes.
	Related []string

	// Body is the rendered section output appended after the front matter.
	Body string
}

// Assemble renders the complete document text. Front matter is emitted only
// when at least one of tags, sources, or related links is present; a bare
// body is returned unchanged otherwise.
//
// Values are emitted as written. Wiki-link wrapping is the only transformation
// applied to paths.
func Assemble(n Note) string {
	var b strings.Builder

	if len(n.Tags) > 0 || len(n.Sources) > 0 || len(n.Related) > 0 {
		b.WriteString("---\n")
		writeList(&b, "tags", n.Tags, false)
		writeList(&b, "source", n.Sources, true)
		writeList(&b, "related", n.Related, true)
		b.WriteString("---\n\n")
	}

	b.WriteString(n.Body)
	if !strings.HasSuffix(n.Body, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// WikiLink wraps a vault-relative path as an internal link, dropping a
// trailing .md extension the way vault software expects.
func WikiLink(path string) string {
	return "[[" + strings.TrimSuffix(path, ".md") + "]]"
}

func writeList(b *strings.Builder, key string, values []string, link bool) {
	if len(values) == 0 {
		return
	}
	b.WriteString(key)
	b.WriteString(":\n")
	for _, v := range values {
		b.WriteString("  - ")
		if link {
			b.WriteString("\"" + WikiLink(v) + "\"")
		} else {
			b.WriteString(v)
		}
		b.WriteString("\n")
	}
}
