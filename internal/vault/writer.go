package vault

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/voxvault/voxvault/internal/template"
)

// DefaultNoteNameTemplate names notes by their creation timestamp.
const DefaultNoteNameTemplate = "{{date:2006-01-02 15-04-05}}"

const timestampLayout = "2006-01-02_15-04-05"

// Option is a functional option for configuring a [Writer].
type Option func(*Writer)

// WithFolders sets the vault-relative base folders for notes, transcripts, and
// recordings. Empty values keep the vault root.
func WithFolders(notes, transcripts, recordings string) Option {
	return func(w *Writer) {
		w.notesFolder = notes
		w.transcriptsFolder = transcripts
		w.recordingsFolder = recordings
	}
}

// WithNoteNameTemplate sets the note naming template. It supports
// {{date:LAYOUT}} placeholders with Go reference-time layouts and {{title}}.
func WithNoteNameTemplate(tmpl string) Option {
	return func(w *Writer) {
		if tmpl != "" {
			w.noteNameTemplate = tmpl
		}
	}
}

// Writer places documents and artifacts into a vault using date-structured
// paths: each base folder gains a /{year}/{month}/ subpath unless the folder
// itself already carries {{date:LAYOUT}} placeholders, in which case those
// control the layout instead.
type Writer struct {
	fs                FS
	notesFolder       string
	transcriptsFolder string
	recordingsFolder  string
	noteNameTemplate  string
}

// NewWriter builds a Writer over fs.
func NewWriter(fs FS, opts ...Option) *Writer {
	w := &Writer{
		fs:               fs,
		noteNameTemplate: DefaultNoteNameTemplate,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// WriteNote writes a finished document and returns its vault-relative path.
// Name collisions are resolved with a numeric " (n)" suffix so an existing
// note is never overwritten.
func (w *Writer) WriteNote(content, title string, at time.Time) (string, error) {
	name := template.RenderDate(w.noteNameTemplate, at)
	name = template.Render(name, template.Variables{"title": title})
	name = sanitizeName(name)
	if name == "" {
		name = at.Format(timestampLayout)
	}

	rel := w.dedupe(path.Join(datedFolder(w.notesFolder, at), name+".md"))
	if err := w.fs.Write(rel, []byte(content)); err != nil {
		return "", err
	}
	return rel, nil
}

// WriteTranscript persists the raw transcript text and returns its
// vault-relative path.
func (w *Writer) WriteTranscript(text string, at time.Time) (string, error) {
	name := at.Format(timestampLayout) + "_transcript.md"
	rel := w.dedupe(path.Join(datedFolder(w.transcriptsFolder, at), name))
	if err := w.fs.Write(rel, []byte(text)); err != nil {
		return "", err
	}
	return rel, nil
}

// WriteRecording persists the original audio and returns its vault-relative
// path. ext is the audio file extension without the leading dot.
func (w *Writer) WriteRecording(audio []byte, ext string, at time.Time) (string, error) {
	if ext == "" {
		ext = "webm"
	}
	name := at.Format(timestampLayout) + "_recording." + ext
	rel := w.dedupe(path.Join(datedFolder(w.recordingsFolder, at), name))
	if err := w.fs.CreateBinary(rel, audio); err != nil {
		return "", err
	}
	return rel, nil
}

// dedupe returns rel, or the first " (n)"-suffixed variant that does not
// exist yet.
func (w *Writer) dedupe(rel string) string {
	if !w.fs.Exists(rel) {
		return rel
	}
	ext := path.Ext(rel)
	base := strings.TrimSuffix(rel, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if !w.fs.Exists(candidate) {
			return candidate
		}
	}
}

// datedFolder expands folder for a point in time. Folders with explicit
// {{date:LAYOUT}} placeholders are rendered as written; plain folders get the
// default /{year}/{month}/ subpath appended.
func datedFolder(folder string, at time.Time) string {
	if strings.Contains(folder, "{{date:") {
		return template.RenderDate(folder, at)
	}
	return path.Join(folder, at.Format("2006"), at.Format("01"))
}

// sanitizeName strips characters that are path separators or otherwise
// illegal in common filesystems.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
