package mcpserver_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voxvault/voxvault/internal/app"
	"github.com/voxvault/voxvault/internal/mcpserver"
	"github.com/voxvault/voxvault/internal/semindex"
	"github.com/voxvault/voxvault/internal/semindex/jsonfile"
	embmock "github.com/voxvault/voxvault/pkg/provider/embeddings/mock"
)

// stubJournal scripts ProcessMemo for handler tests.
type stubJournal struct {
	result *app.NoteResult
	err    error
	memos  []app.Memo
}

func (s *stubJournal) ProcessMemo(_ context.Context, memo app.Memo) (*app.NoteResult, error) {
	s.memos = append(s.memos, memo)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestJournalAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memo.ogg")
	if err := os.WriteFile(path, []byte("opus"), 0o644); err != nil {
		t.Fatal(err)
	}

	journal := &stubJournal{result: &app.NoteResult{
		NotePath: "journal/2026/03/note.md",
		Tags:     []string{"voice-memo"},
	}}
	svc := mcpserver.New(journal, nil, nil)

	_, out, err := svc.JournalAudio(context.Background(), nil, mcpserver.JournalAudioInput{
		Path:     path,
		Language: "en",
		Title:    "Idea",
	})
	if err != nil {
		t.Fatalf("JournalAudio: %v", err)
	}
	if out.NotePath != "journal/2026/03/note.md" {
		t.Errorf("note_path = %q", out.NotePath)
	}

	if len(journal.memos) != 1 {
		t.Fatalf("journal called %d times", len(journal.memos))
	}
	memo := journal.memos[0]
	if string(memo.Audio) != "opus" {
		t.Error("audio not forwarded")
	}
	if memo.FileExtension != "ogg" {
		t.Errorf("extension = %q, want ogg", memo.FileExtension)
	}
	if memo.Language != "en" || memo.Title != "Idea" {
		t.Errorf("fields not forwarded: %+v", memo)
	}
}

func TestJournalAudio_MissingFile(t *testing.T) {
	svc := mcpserver.New(&stubJournal{}, nil, nil)

	_, _, err := svc.JournalAudio(context.Background(), nil, mcpserver.JournalAudioInput{
		Path: filepath.Join(t.TempDir(), "absent.webm"),
	})
	if err == nil || !strings.Contains(err.Error(), "read recording") {
		t.Errorf("err = %v, want read error", err)
	}
}

func TestJournalAudio_EmptyPath(t *testing.T) {
	svc := mcpserver.New(&stubJournal{}, nil, nil)

	_, _, err := svc.JournalAudio(context.Background(), nil, mcpserver.JournalAudioInput{})
	if err == nil {
		t.Error("expected error for empty path")
	}
}

func TestJournalAudio_PipelineError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memo.webm")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("asr down")
	svc := mcpserver.New(&stubJournal{err: boom}, nil, nil)

	_, _, err := svc.JournalAudio(context.Background(), nil, mcpserver.JournalAudioInput{Path: path})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want pipeline error", err)
	}
}

func TestSearchNotes(t *testing.T) {
	idx, err := jsonfile.Open(filepath.Join(t.TempDir(), "index.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	entries := []semindex.Entry{
		{Path: "journal/a.md", Title: "Garden", Embedding: []float32{1, 0}},
		{Path: "journal/b.md", Title: "Taxes", Embedding: []float32{0, 1}},
	}
	for _, e := range entries {
		if err := idx.Add(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	svc := mcpserver.New(&stubJournal{}, idx, &embmock.Provider{Vector: []float32{1, 0}})

	_, out, err := svc.SearchNotes(ctx, nil, mcpserver.SearchNotesInput{Query: "garden", TopK: 1})
	if err != nil {
		t.Fatalf("SearchNotes: %v", err)
	}
	if len(out.Matches) != 1 {
		t.Fatalf("matches = %+v, want 1", out.Matches)
	}
	if out.Matches[0].Path != "journal/a.md" || out.Matches[0].Title != "Garden" {
		t.Errorf("best match = %+v", out.Matches[0])
	}
	if out.Matches[0].Similarity < 0.99 {
		t.Errorf("similarity = %f, want ~1", out.Matches[0].Similarity)
	}
}

func TestSearchNotes_Disabled(t *testing.T) {
	svc := mcpserver.New(&stubJournal{}, nil, nil)

	_, _, err := svc.SearchNotes(context.Background(), nil, mcpserver.SearchNotesInput{Query: "x"})
	if err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Errorf("err = %v, want disabled error", err)
	}
}

func TestSearchNotes_EmptyQuery(t *testing.T) {
	idx, err := jsonfile.Open(filepath.Join(t.TempDir(), "index.json"))
	if err != nil {
		t.Fatal(err)
	}
	svc := mcpserver.New(&stubJournal{}, idx, &embmock.Provider{Vector: []float32{1}})

	_, _, err = svc.SearchNotes(context.Background(), nil, mcpserver.SearchNotesInput{})
	if err == nil {
		t.Error("expected error for empty query")
	}
}

func TestServer_RegistersTools(t *testing.T) {
	svc := mcpserver.New(&stubJournal{}, nil, nil)
	if srv := svc.Server("test"); srv == nil {
		t.Fatal("Server returned nil")
	}
}
