// Package mock provides a test double for the stt.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/voxvault/voxvault/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Audio is the audio payload passed to Transcribe.
	Audio []byte
	// Req is the request passed to Transcribe.
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
// Zero values cause Transcribe to return (nil, nil); set Result or Err to
// script behaviour.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil.
	Result *stt.Result

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall
}

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns the scripted result.
func (p *Provider) Transcribe(_ context.Context, audio []byte, req stt.Request) (*stt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, TranscribeCall{Audio: audio, Req: req})
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Result, nil
}
