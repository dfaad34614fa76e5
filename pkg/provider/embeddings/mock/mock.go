// Package mock provides a deterministic embeddings.Provider for tests.
package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/mumeinosato/kira-ai/pkg/provider/embeddings"
)

// Compile-time assertion that Provider implements embeddings.Provider.
var _ embeddings.Provider = (*Provider)(nil)

// Provider is a mock embeddings provider. By default it produces a
// deterministic pseudo-vector derived from the input text, so equal texts
// embed identically and different texts (almost always) differ.
type Provider struct {
	mu sync.Mutex

	// Dims is the vector length; defaults to 4 when zero.
	Dims int

	// Vectors, when set, maps exact input text to a fixed vector, bypassing
	// the derived default.
	Vectors map[string][]float32

	// Err, when non-nil, is returned by Embed and EmbedBatch.
	Err error

	// EmbedCalls records every text passed to Embed or EmbedBatch.
	EmbedCalls []string
}

func (p *Provider) dims() int {
	if p.Dims <= 0 {
		return 4
	}
	return p.Dims
}

// Embed returns a deterministic vector for text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.vectorFor(text), nil
}

// EmbedBatch returns one deterministic vector per input text.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, texts...)
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vectorFor(t)
	}
	return out, nil
}

// Dimensions returns the configured vector length.
func (p *Provider) Dimensions() int { return p.dims() }

// ModelID identifies the mock.
func (p *Provider) ModelID() string { return "mock-embeddings" }

// vectorFor derives a stable vector from text. Caller holds mu.
func (p *Provider) vectorFor(text string) []float32 {
	if v, ok := p.Vectors[text]; ok {
		return v
	}
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float32, p.dims())
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(seed%2000)/1000.0 - 1.0
	}
	return vec
}
