// Package native provides an in-process STT provider backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.
//
// The provider accepts complete RIFF/WAV recordings (16-bit signed
// little-endian PCM at 16 kHz, mono or multi-channel) and runs batch
// inference on the decoded samples. No network dependency is involved, which
// makes this backend suitable for fully offline vaults.
package native

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxvault/voxvault/pkg/provider/stt"
)

// requiredSampleRate is the only sample rate whisper.cpp accepts.
const requiredSampleRate = 16000

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the ISO 639-1 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en". The value "auto" enables
// whisper.cpp's own language detection.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// Provider implements stt.Provider using whisper.cpp Go bindings (CGO).
// The model is loaded once at construction and shared across all concurrent
// transcriptions; each Transcribe call creates its own inference context.
type Provider struct {
	model    whisperlib.Model
	language string
}

// New creates a Provider that loads the whisper.cpp model from the given file
// path. The caller must call Close when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper native: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper native: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:    model,
		language: "en",
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements stt.Provider. audio must be a RIFF/WAV container with
// 16-bit PCM at 16 kHz; other containers should be transcoded upstream or sent
// to an HTTP backend instead.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, req stt.Request) (*stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper native: context already cancelled: %w", err)
	}
	start := time.Now()

	samples, sampleRate, channels, err := decodeWAV(audio)
	if err != nil {
		return nil, fmt.Errorf("whisper native: %w", err)
	}
	if sampleRate != requiredSampleRate {
		return nil, fmt.Errorf("whisper native: sample rate %d Hz unsupported, need %d Hz", sampleRate, requiredSampleRate)
	}

	mono := downmix(samples, channels)

	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	if lang == stt.LanguageAuto {
		lang = "auto"
	}

	// Each whisper context is NOT thread-safe, but the model can be shared
	// across goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper native: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper native: failed to set language, using default", "language", lang, "err", err)
	}

	if err := wctx.Process(mono, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper native: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper native: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	result := &stt.Result{
		Text:           strings.Join(parts, " "),
		ProcessingTime: time.Since(start),
	}
	if lang != "auto" {
		result.LanguageCode = lang
	}
	return result, nil
}

// decodeWAV parses a RIFF/WAV container holding 16-bit signed little-endian
// PCM and returns normalised float32 samples (interleaved), the sample rate,
// and the channel count.
func decodeWAV(data []byte) (samples []float32, sampleRate, channels int, err error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, errors.New("not a RIFF/WAV file")
	}

	var pcm []byte
	bitsPerSample := 0

	// Walk the chunk list; fmt must precede data per the RIFF spec.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, errors.New("truncated fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 { // PCM
				return nil, 0, 0, fmt.Errorf("unsupported WAV format code %d, need PCM", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if sampleRate == 0 || channels == 0 {
		return nil, 0, 0, errors.New("missing fmt chunk")
	}
	if bitsPerSample != 16 {
		return nil, 0, 0, fmt.Errorf("unsupported bit depth %d, need 16-bit PCM", bitsPerSample)
	}
	if len(pcm) == 0 {
		return nil, 0, 0, errors.New("missing data chunk")
	}

	n := len(pcm) / 2
	samples = make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples, sampleRate, channels, nil
}

// downmix averages interleaved multi-channel samples into mono. For channels
// <= 1 the input is returned unchanged.
func downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
