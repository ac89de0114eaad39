// Package whisperasr provides an STT provider backed by a self-hosted
// whisper ASR webservice.
//
// It talks to the service's REST API:
//
//	POST {endpoint}/asr?output=json[&language=CODE][&diarize=true]
//	POST {endpoint}/detect-language
//
// both with a multipart body carrying the audio file. The /asr endpoint may
// answer either {"text": "..."} or {"segments": [{"text": "..."}, ...]};
// segment texts are joined in order.
//
// When the request language is stt.LanguageAuto the provider first calls
// /detect-language and forwards the discovered code as a query parameter.
// Detection failures are swallowed: transcription proceeds without a language
// hint, which matches the service's own fallback behaviour.
//
// Usage:
//
//	p, err := whisperasr.New("http://localhost:9000",
//	    whisperasr.WithLanguage("en"),
//	)
//	result, err := p.Transcribe(ctx, audio, stt.Request{Language: "auto", FileExtension: "ogg"})
package whisperasr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voxvault/voxvault/pkg/provider/stt"
)

const defaultTimeout = 5 * time.Minute

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the default ISO 639-1 language code used when a request
// does not specify one. Defaults to empty, which lets the server decide.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithDiarization enables speaker diarization on every request unless the
// request overrides it. Requires a server built with diarization support.
func WithDiarization(enabled bool) Option {
	return func(p *Provider) {
		p.diarize = enabled
	}
}

// WithHTTPClient overrides the HTTP client used for all requests. The default
// client has a 5 minute timeout sized for long recordings.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider backed by a whisper ASR webservice.
type Provider struct {
	endpoint   string
	language   string
	diarize    bool
	httpClient *http.Client
}

// New creates a Provider that connects to the ASR service at endpoint
// (e.g., "http://localhost:9000"). endpoint must be non-empty; a trailing
// slash is stripped.
func New(endpoint string, opts ...Option) (*Provider, error) {
	if endpoint == "" {
		return nil, errors.New("whisperasr: endpoint must not be empty")
	}
	p := &Provider{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider. For stt.LanguageAuto it resolves the
// language via DetectLanguage first; detection errors are logged and ignored.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, req stt.Request) (*stt.Result, error) {
	start := time.Now()

	lang := req.Language
	if lang == "" {
		lang = p.language
	}

	var detectedName, detectedCode string
	if lang == stt.LanguageAuto {
		lang = ""
		code, name, err := p.DetectLanguage(ctx, audio, req.FileExtension)
		if err != nil {
			slog.Debug("language auto-detection failed, transcribing without hint", "err", err)
		} else {
			lang = code
			detectedCode = code
			detectedName = name
		}
	}

	q := url.Values{}
	q.Set("output", "json")
	if lang != "" {
		q.Set("language", lang)
	}
	if req.Diarize || p.diarize {
		q.Set("diarize", "true")
	}

	body, err := p.post(ctx, "/asr?"+q.Encode(), audio, req.FileExtension)
	if err != nil {
		return nil, err
	}

	var parsed asrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("whisperasr: parse JSON response: %w", err)
	}

	result := &stt.Result{
		Text:             parsed.text(),
		DetectedLanguage: detectedName,
		LanguageCode:     detectedCode,
		ProcessingTime:   time.Since(start),
	}
	if result.LanguageCode == "" {
		result.LanguageCode = lang
	}
	return result, nil
}

// DetectLanguage calls the service's /detect-language endpoint and returns the
// ISO 639-1 code and the human-readable language name.
func (p *Provider) DetectLanguage(ctx context.Context, audio []byte, fileExtension string) (code, name string, err error) {
	body, err := p.post(ctx, "/detect-language", audio, fileExtension)
	if err != nil {
		return "", "", err
	}

	// Current field names plus the pre-1.8 legacy ones.
	var parsed struct {
		LanguageCode     string `json:"language_code"`
		LanguageName     string `json:"language_name"`
		DetectedLanguage string `json:"detected_language"`
		Language         string `json:"language"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", fmt.Errorf("whisperasr: parse detect-language response: %w", err)
	}

	code = parsed.LanguageCode
	if code == "" {
		code = parsed.Language
	}
	name = parsed.LanguageName
	if name == "" {
		name = parsed.DetectedLanguage
	}
	if code == "" && name == "" {
		return "", "", errors.New("whisperasr: detect-language response carried no language fields")
	}
	return code, name, nil
}

// post uploads audio as multipart/form-data to path and returns the raw
// response body. Non-200 statuses are returned as errors carrying the status.
func (p *Provider) post(ctx context.Context, path string, audio []byte, fileExtension string) ([]byte, error) {
	filename := "audio"
	if fileExtension != "" {
		filename += "." + strings.TrimPrefix(fileExtension, ".")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio_file", filename)
	if err != nil {
		return nil, fmt.Errorf("whisperasr: create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, fmt.Errorf("whisperasr: write audio data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisperasr: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("whisperasr: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisperasr: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisperasr: server returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisperasr: read response body: %w", err)
	}
	return body, nil
}

// asrResponse covers both response shapes of the /asr endpoint.
type asrResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text string `json:"text"`
	} `json:"segments"`
}

// text returns the flat text field when present, otherwise the segment texts
// joined in order.
func (r asrResponse) text() string {
	if r.Text != "" {
		return r.Text
	}
	parts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
