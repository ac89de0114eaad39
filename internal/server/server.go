// Package server exposes the HTTP ingest API: voice memos come in as
// multipart uploads, finished notes land in the vault, and the response
// reports what was written.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxvault/voxvault/internal/app"
	"github.com/voxvault/voxvault/internal/health"
	"github.com/voxvault/voxvault/internal/observe"
	"github.com/voxvault/voxvault/internal/template"
)

// DefaultMaxUploadBytes caps uploads when the config does not set a limit.
const DefaultMaxUploadBytes int64 = 64 << 20

// MemoProcessor runs one memo through the pipeline. *app.App implements it.
type MemoProcessor interface {
	ProcessMemo(ctx context.Context, memo app.Memo) (*app.NoteResult, error)
}

// Server is the HTTP ingest server.
type Server struct {
	processor MemoProcessor
	templates *template.Store
	health    *health.Handler
	metrics   *observe.Metrics
	maxUpload int64

	httpServer *http.Server
}

// Option is a functional option for New.
type Option func(*Server)

// WithMaxUploadBytes caps the accepted recording size.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithHealth sets the health handler registered under /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics injects a metrics instance instead of the process-global one.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New builds a Server listening on addr.
func New(addr string, processor MemoProcessor, templates *template.Store, opts ...Option) *Server {
	s := &Server{
		processor: processor,
		templates: templates,
		maxUpload: DefaultMaxUploadBytes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.health == nil {
		s.health = health.New()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/memos", s.handleMemo)
	mux.HandleFunc("GET /v1/templates", s.handleTemplates)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(s.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the fully wired HTTP handler, middleware included.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server: listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// memoResponse is the JSON body returned for a processed memo.
type memoResponse struct {
	NotePath       string   `json:"note_path"`
	TranscriptPath string   `json:"transcript_path,omitempty"`
	RecordingPath  string   `json:"recording_path,omitempty"`
	Language       string   `json:"language,omitempty"`
	Tags           []string `json:"tags"`
	Related        []string `json:"related,omitempty"`
}

// errorResponse is the JSON body for all error statuses.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleMemo(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("recording exceeds the %d byte upload limit", s.maxUpload))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	file, header, err := r.FormFile("audio")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("recording exceeds the %d byte upload limit", s.maxUpload))
			return
		}
		writeError(w, http.StatusBadRequest, `multipart field "audio" is required`)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("recording exceeds the %d byte upload limit", s.maxUpload))
			return
		}
		writeError(w, http.StatusBadRequest, "reading upload: "+err.Error())
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "uploaded recording is empty")
		return
	}

	memo := app.Memo{
		Audio:         audio,
		FileExtension: fileExtension(header),
		Language:      r.FormValue("language"),
		TemplateID:    r.FormValue("template"),
		Title:         r.FormValue("title"),
	}

	res, err := s.processor.ProcessMemo(r.Context(), memo)
	if err != nil {
		if errors.Is(err, app.ErrTemplateNotFound) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		observe.Logger(r.Context()).Error("server: memo processing failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, memoResponse{
		NotePath:       res.NotePath,
		TranscriptPath: res.TranscriptPath,
		RecordingPath:  res.RecordingPath,
		Language:       res.Language,
		Tags:           res.Tags,
		Related:        res.Related,
	})
}

// templateInfo is one entry in the /v1/templates listing.
type templateInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Sections    int    `json:"sections"`
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	all := s.templates.All()
	if len(all) == 0 {
		all = []template.Template{template.Builtin()}
	}
	infos := make([]templateInfo, 0, len(all))
	for _, t := range all {
		infos = append(infos, templateInfo{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Sections:    len(t.Sections),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

// fileExtension derives the recording format from the uploaded filename.
func fileExtension(header *multipart.FileHeader) string {
	if header == nil {
		return ""
	}
	return strings.TrimPrefix(filepath.Ext(header.Filename), ".")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("server: encoding response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
