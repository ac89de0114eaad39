// Package mcpserver exposes VoxVault over the Model Context Protocol.
//
// The server speaks MCP on stdio, so any MCP-capable client (an editor
// assistant, a desktop LLM app) can journal recordings and search the note
// index through two tools:
//
//   - journal_audio: run a recording on disk through the memo pipeline
//   - search_notes: semantic search over the vault's note index
package mcpserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/voxvault/voxvault/internal/app"
	"github.com/voxvault/voxvault/internal/semindex"
	"github.com/voxvault/voxvault/pkg/provider/embeddings"
)

// Journal runs memos through the pipeline. *app.App implements it.
type Journal interface {
	ProcessMemo(ctx context.Context, memo app.Memo) (*app.NoteResult, error)
}

// Service holds the handlers backing the MCP tools.
type Service struct {
	journal  Journal
	index    semindex.Index
	embedder embeddings.Provider
}

// New builds a Service. index and embedder may be nil when the semantic
// linker is disabled; search_notes then reports an error to the client.
func New(journal Journal, index semindex.Index, embedder embeddings.Provider) *Service {
	return &Service{journal: journal, index: index, embedder: embedder}
}

// JournalAudioInput is the argument schema for the journal_audio tool.
type JournalAudioInput struct {
	Path     string `json:"path" jsonschema:"absolute path of the audio recording to journal"`
	Language string `json:"language,omitempty" jsonschema:"ISO 639-1 language code, or auto to detect"`
	Template string `json:"template,omitempty" jsonschema:"note template id, empty for the default"`
	Title    string `json:"title,omitempty" jsonschema:"optional note title"`
}

// JournalAudioOutput reports what the pipeline produced.
type JournalAudioOutput struct {
	NotePath       string   `json:"note_path"`
	TranscriptPath string   `json:"transcript_path,omitempty"`
	RecordingPath  string   `json:"recording_path,omitempty"`
	Tags           []string `json:"tags"`
	Related        []string `json:"related,omitempty"`
	Language       string   `json:"language,omitempty"`
}

// JournalAudio reads the recording at input.Path and runs it through the
// full memo pipeline.
func (s *Service) JournalAudio(ctx context.Context, _ *mcp.CallToolRequest, input JournalAudioInput) (*mcp.CallToolResult, JournalAudioOutput, error) {
	var out JournalAudioOutput
	if input.Path == "" {
		return nil, out, fmt.Errorf("path is required")
	}
	audio, err := os.ReadFile(input.Path)
	if err != nil {
		return nil, out, fmt.Errorf("read recording: %w", err)
	}

	res, err := s.journal.ProcessMemo(ctx, app.Memo{
		Audio:         audio,
		FileExtension: fileExt(input.Path),
		Language:      input.Language,
		TemplateID:    input.Template,
		Title:         input.Title,
	})
	if err != nil {
		return nil, out, err
	}

	out = JournalAudioOutput{
		NotePath:       res.NotePath,
		TranscriptPath: res.TranscriptPath,
		RecordingPath:  res.RecordingPath,
		Tags:           res.Tags,
		Related:        res.Related,
		Language:       res.Language,
	}
	return nil, out, nil
}

// SearchNotesInput is the argument schema for the search_notes tool.
type SearchNotesInput struct {
	Query string `json:"query" jsonschema:"natural-language description of the notes to find"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 5"`
}

// NoteMatch is one search hit.
type NoteMatch struct {
	Path       string  `json:"path"`
	Title      string  `json:"title,omitempty"`
	Similarity float64 `json:"similarity"`
}

// SearchNotesOutput lists matching notes, best first.
type SearchNotesOutput struct {
	Matches []NoteMatch `json:"matches"`
}

// SearchNotes embeds the query and returns the closest indexed notes.
func (s *Service) SearchNotes(ctx context.Context, _ *mcp.CallToolRequest, input SearchNotesInput) (*mcp.CallToolResult, SearchNotesOutput, error) {
	var out SearchNotesOutput
	if s.index == nil || s.embedder == nil {
		return nil, out, fmt.Errorf("semantic search is disabled; enable the linker and an embeddings provider")
	}
	if input.Query == "" {
		return nil, out, fmt.Errorf("query is required")
	}
	topK := input.TopK
	if topK <= 0 {
		topK = 5
	}

	vector, err := s.embedder.Embed(ctx, input.Query)
	if err != nil {
		return nil, out, fmt.Errorf("embed query: %w", err)
	}
	results, err := s.index.Search(ctx, vector, topK, 0)
	if err != nil {
		return nil, out, fmt.Errorf("search index: %w", err)
	}

	out.Matches = make([]NoteMatch, 0, len(results))
	for _, r := range results {
		out.Matches = append(out.Matches, NoteMatch{
			Path:       r.Path,
			Title:      r.Title,
			Similarity: r.Similarity,
		})
	}
	return nil, out, nil
}

// Server assembles the MCP server with both tools registered.
func (s *Service) Server(version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "voxvault", Version: version}, nil)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "journal_audio",
		Description: "Transcribe a voice recording and turn it into a structured journal note in the vault.",
	}, s.JournalAudio)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_notes",
		Description: "Find journal notes semantically related to a query.",
	}, s.SearchNotes)
	return srv
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Service) Run(ctx context.Context, version string) error {
	return s.Server(version).Run(ctx, &mcp.StdioTransport{})
}

// fileExt returns the extension of path without the dot.
func fileExt(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}
