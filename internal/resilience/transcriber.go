package resilience

import (
	"context"

	"github.com/voxvault/voxvault/pkg/provider/stt"
)

// Transcriber wraps a [FallbackGroup] of speech-to-text providers back into
// the [stt.Provider] interface. The primary backend is tried first; on
// failure or an open circuit the configured fallbacks are tried in order.
type Transcriber struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*Transcriber)(nil)

// NewTranscriber builds a Transcriber with primary as the first entry.
func NewTranscriber(primary stt.Provider, primaryName string, cfg FallbackConfig) *Transcriber {
	return &Transcriber{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback appends a fallback backend. Fallbacks are tried in the order
// they are added, after the primary.
func (t *Transcriber) AddFallback(name string, provider stt.Provider) {
	t.group.AddFallback(name, provider)
}

// Transcribe dispatches to the first healthy backend. It returns
// [ErrAllFailed] wrapped with the last backend error when every backend
// fails or is circuit-open.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, req stt.Request) (*stt.Result, error) {
	return ExecuteWithResult(t.group, func(p stt.Provider) (*stt.Result, error) {
		return p.Transcribe(ctx, audio, req)
	})
}
