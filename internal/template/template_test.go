package template

import (
	"strings"
	"testing"
	"time"
)

func TestNewStore_RejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	_, err := NewStore([]Template{
		{ID: "daily", Sections: []Section{{Title: "A", Context: "x"}}},
		{ID: "daily", Sections: []Section{{Title: "B", Context: "y"}}},
	})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStore_GetAndDefault(t *testing.T) {
	t.Parallel()

	s, err := NewStore([]Template{
		{ID: "daily", Name: "Daily"},
		{ID: "idea", Name: "Idea"},
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	tpl, ok := s.Get("idea")
	if !ok || tpl.Name != "Idea" {
		t.Errorf("Get(idea) = %+v, %v", tpl, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) should report not found")
	}
	if def := s.Default(); def.ID != "daily" {
		t.Errorf("Default() = %s, want daily", def.ID)
	}
}

func TestStore_EmptyDefaultsToBuiltin(t *testing.T) {
	t.Parallel()

	s, err := NewStore(nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	def := s.Default()
	if def.ID != "default" {
		t.Errorf("Default() = %s, want builtin default", def.ID)
	}
	if len(def.Sections) == 0 {
		t.Error("builtin template has no sections")
	}
}

func TestLoadStoreFromReader(t *testing.T) {
	t.Parallel()

	const doc = `
templates:
  - id: daily
    name: Daily Journal
    sections:
      - title: Highlights
        prompt: List the highlights of the day.
        context: "## Highlights\n{{response}}\n"
      - title: Transcription
        context: "## Transcription\n{{transcription}}\n"
        optional: true
`
	s, err := LoadStoreFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadStoreFromReader: %v", err)
	}
	tpl, ok := s.Get("daily")
	if !ok {
		t.Fatal("daily template not found")
	}
	if len(tpl.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(tpl.Sections))
	}
	if !tpl.Sections[1].Optional {
		t.Error("second section should be optional")
	}
}

func TestLoadStoreFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	const doc = `
templates:
  - id: daily
    secttions:
      - title: Oops
        context: x
`
	if _, err := LoadStoreFromReader(strings.NewReader(doc)); err == nil {
		t.Fatal("expected decode error for unknown field")
	}
}

func TestLoadStoreFromReader_RejectsSectionWithoutContext(t *testing.T) {
	t.Parallel()

	const doc = `
templates:
  - id: daily
    sections:
      - title: Highlights
        prompt: List the highlights.
`
	_, err := LoadStoreFromReader(strings.NewReader(doc))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "no context") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSlug(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"Summary", "summary"},
		{"Action Items", "action-items"},
		{"  Key   Takeaways!  ", "key-takeaways"},
		{"To-Do (today)", "to-do-today"},
		{"2024 Goals", "2024-goals"},
	}
	for _, tc := range cases {
		if got := Slug(tc.in); got != tc.want {
			t.Errorf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRender_SubstitutesAndPassesThrough(t *testing.T) {
	t.Parallel()

	vars := Variables{
		"transcription": "hello world",
		"response":      "a summary",
	}
	got := Render("## Out\n{{response}}\n{{ transcription }}\n{{unknown}}\n", vars)
	want := "## Out\na summary\nhello world\n{{unknown}}\n"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRenderDate(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, time.March, 7, 9, 4, 5, 0, time.UTC)
	got := RenderDate("{{date:2006-01-02}} memo {{date:15-04}}", at)
	if got != "2026-03-07 memo 09-04" {
		t.Errorf("RenderDate = %q", got)
	}
}

func TestRenderDate_LeavesPlainTextAlone(t *testing.T) {
	t.Parallel()

	if got := RenderDate("no placeholders", time.Now()); got != "no placeholders" {
		t.Errorf("RenderDate = %q", got)
	}
}
