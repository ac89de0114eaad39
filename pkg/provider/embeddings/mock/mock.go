// Package mock provides a test double for the embeddings.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/voxvault/voxvault/pkg/provider/embeddings"
)

// Provider is a mock implementation of embeddings.Provider.
//
// When EmbedFunc is nil, Embed returns Vector (or an error if Err is set).
// All calls are recorded in Texts.
type Provider struct {
	mu sync.Mutex

	// EmbedFunc, if non-nil, is called by Embed instead of returning Vector.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	// Vector is returned by Embed when EmbedFunc is nil and Err is nil.
	Vector []float32

	// Err, if non-nil, is returned as the error from Embed.
	Err error

	// Dims is returned by Dimensions.
	Dims int

	// Model is returned by ModelID.
	Model string

	// Texts records every text passed to Embed, in order.
	Texts []string
}

// Compile-time assertion that Provider implements embeddings.Provider.
var _ embeddings.Provider = (*Provider)(nil)

// Embed records the call and returns the scripted vector.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.Texts = append(p.Texts, text)
	p.mu.Unlock()

	if p.EmbedFunc != nil {
		return p.EmbedFunc(ctx, text)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Vector, nil
}

// Dimensions returns the configured dimension count.
func (p *Provider) Dimensions() int { return p.Dims }

// ModelID returns the configured model identifier.
func (p *Provider) ModelID() string { return p.Model }
