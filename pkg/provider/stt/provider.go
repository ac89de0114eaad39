// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (a self-hosted whisper ASR
// server, the OpenAI audio API, or an in-process whisper.cpp model) and exposes
// a uniform batch interface: a complete recording goes in, a transcript comes
// out. VoxVault processes finished voice memos rather than live audio, so no
// streaming session abstraction is needed.
//
// Implementations must be safe for concurrent use. Multiple memos may be
// transcribed simultaneously (e.g., concurrent HTTP uploads).
package stt

import (
	"context"
	"time"
)

// LanguageAuto is the sentinel language value requesting automatic language
// detection. Backends that support a detection endpoint should resolve the
// language first; backends that do not should omit the language hint entirely.
const LanguageAuto = "auto"

// Request carries per-memo transcription parameters.
type Request struct {
	// Language is the ISO 639-1 language code for recognition (e.g., "en", "de"),
	// LanguageAuto for automatic detection, or empty for the provider default.
	Language string

	// FileExtension is the extension of the original recording without the dot
	// (e.g., "webm", "ogg", "wav"). Backends that upload the audio use it to
	// name the form file so the server can pick the right demuxer.
	FileExtension string

	// Diarize requests speaker diarization when the backend supports it.
	Diarize bool
}

// Result is the outcome of a single transcription. It is immutable after
// creation; the pipeline consumes it and discards it after document assembly.
type Result struct {
	// Text is the transcribed speech content.
	Text string

	// DetectedLanguage is the human-readable name of the detected language
	// (e.g., "German"). Empty when no detection was performed.
	DetectedLanguage string

	// LanguageCode is the ISO 639-1 code of the detected or requested language.
	// Empty when unknown.
	LanguageCode string

	// ProcessingTime is how long the backend took to produce the transcript.
	ProcessingTime time.Duration
}

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Transcribe submits a complete audio recording and returns the transcript.
	//
	// audio holds the full encoded recording (the container format indicated by
	// req.FileExtension). Returns an error for transport failures, non-2xx
	// responses, and malformed backend replies; an empty-but-successful
	// transcription is NOT an error at this layer — callers decide whether
	// empty text is fatal.
	Transcribe(ctx context.Context, audio []byte, req Request) (*Result, error)
}
