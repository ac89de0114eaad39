package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/voxvault/voxvault/internal/pipeline"
	"github.com/voxvault/voxvault/internal/template"
	"github.com/voxvault/voxvault/pkg/provider/llm"
	"github.com/voxvault/voxvault/pkg/provider/llm/mock"
)

func twoSectionTemplate() template.Template {
	return template.Template{
		ID: "daily",
		Sections: []template.Section{
			{
				Title:   "Summary",
				Prompt:  "Summarize the memo.",
				Context: "## Summary\n{{response}}\n\n",
			},
			{
				Title:   "Transcription",
				Context: "## Transcription\n{{transcription}}\n",
			},
		},
	}
}

func TestProcess_SequentialSections(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "short summary"},
	}
	p := pipeline.New(provider)

	body, vars, err := p.Process(context.Background(), "hello from the road", twoSectionTemplate())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := "## Summary\nshort summary\n\n## Transcription\nhello from the road\n"
	if body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
	if vars["response"] != "short summary" {
		t.Errorf("vars[response] = %q", vars["response"])
	}
	if vars["summary"] != "short summary" {
		t.Errorf("vars[summary] = %q", vars["summary"])
	}
}

func TestProcess_LaterSectionSeesEarlierVariable(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			{Content: "first"},
			{Content: "second"},
		},
	}
	p := pipeline.New(provider)

	tpl := template.Template{
		ID: "chain",
		Sections: []template.Section{
			{Title: "Ideas", Prompt: "List ideas.", Context: ""},
			{Title: "Plan", Prompt: "Make a plan.", Context: "{{ideas}} then {{response}}\n"},
		},
	}
	body, _, err := p.Process(context.Background(), "memo", tpl)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.Contains(body, "first then second") {
		t.Errorf("body = %q", body)
	}
}

func TestProcess_OptionalSkippedByConfig(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "should not run"},
	}
	p := pipeline.New(provider)

	tpl := template.Template{
		ID: "opt",
		Sections: []template.Section{
			{Title: "Extras", Prompt: "Extras?", Context: "{{response}}", Optional: true},
			{Title: "Transcription", Context: "## Transcription\n{{transcription}}\n"},
		},
	}
	body, _, err := p.Process(context.Background(), "memo text", tpl)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if strings.Contains(body, "should not run") {
		t.Errorf("optional section was processed: %q", body)
	}
	if len(provider.CompleteCalls) != 0 {
		t.Errorf("got %d completion calls, want 0", len(provider.CompleteCalls))
	}
}

func TestProcess_OptionalSentinelDiscardsSection(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			{Content: "  " + pipeline.SkipSentinel + "  "},
			{Content: "real content"},
		},
	}
	p := pipeline.New(provider, pipeline.WithOptionalSections(true))

	tpl := template.Template{
		ID: "opt",
		Sections: []template.Section{
			{Title: "Action Items", Prompt: "Any actions?", Context: "## Actions\n{{response}}\n", Optional: true},
			{Title: "Summary", Prompt: "Summarize.", Context: "## Summary\n{{response}}\n"},
		},
	}
	body, vars, err := p.Process(context.Background(), "memo", tpl)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if strings.Contains(body, "Actions") {
		t.Errorf("discarded section rendered: %q", body)
	}
	if !strings.Contains(body, "real content") {
		t.Errorf("second section missing: %q", body)
	}
	if _, ok := vars["action-items"]; ok {
		t.Error("discarded section left a variable behind")
	}
	if vars["response"] != "real content" {
		t.Errorf("vars[response] = %q, want the surviving section's output", vars["response"])
	}
}

func TestProcess_OptionalPromptCarriesSkipInstruction(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "x"},
	}
	p := pipeline.New(provider, pipeline.WithOptionalSections(true))

	tpl := template.Template{
		ID: "opt",
		Sections: []template.Section{
			{Title: "Extras", Prompt: "Extras?", Context: "{{response}}", Optional: true},
		},
	}
	if _, _, err := p.Process(context.Background(), "memo", tpl); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("got %d completion calls, want 1", len(provider.CompleteCalls))
	}
	if !strings.Contains(provider.CompleteCalls[0].Req.SystemPrompt, pipeline.SkipSentinel) {
		t.Errorf("system prompt missing sentinel instruction: %q", provider.CompleteCalls[0].Req.SystemPrompt)
	}
}

func TestProcess_CompletionErrorAbortsRun(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("model unavailable")
	provider := &mock.Provider{CompleteErr: wantErr}
	p := pipeline.New(provider)

	body, _, err := p.Process(context.Background(), "memo", twoSectionTemplate())
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped %v", err, wantErr)
	}
	if body != "" {
		t.Errorf("body = %q, want empty on error", body)
	}
	if !strings.Contains(err.Error(), "Summary") {
		t.Errorf("error should name the failing section: %v", err)
	}
}

func TestProcess_UnresolvedTokenPassesThrough(t *testing.T) {
	t.Parallel()

	p := pipeline.New(nil)
	tpl := template.Template{
		ID: "static",
		Sections: []template.Section{
			{Title: "Notes", Context: "{{transcription}} and {{missing}}\n"},
		},
	}
	body, _, err := p.Process(context.Background(), "memo", tpl)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if body != "memo and {{missing}}\n" {
		t.Errorf("body = %q", body)
	}
}

func TestProcess_EmptyOutputFallsBackToTranscription(t *testing.T) {
	t.Parallel()

	p := pipeline.New(nil)
	tpl := template.Template{ID: "empty"}

	body, _, err := p.Process(context.Background(), "just the words", tpl)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.Contains(body, "## Transcription") || !strings.Contains(body, "just the words") {
		t.Errorf("fallback body = %q", body)
	}
}

func TestProcess_NilProviderSkipsPromptedSections(t *testing.T) {
	t.Parallel()

	p := pipeline.New(nil)
	body, _, err := p.Process(context.Background(), "memo", twoSectionTemplate())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if strings.Contains(body, "## Summary") {
		t.Errorf("prompted section rendered without a provider: %q", body)
	}
	if !strings.Contains(body, "memo") {
		t.Errorf("static section missing: %q", body)
	}
}
