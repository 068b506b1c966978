// File path: internal/llm/providers/types.go
package providers

import (
	"context"
	"errors"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one role-tagged turn in the generative model's schema.
type Message struct {
	Role    string
	Content string
}

// GenerationConfig bounds a single generation call.
type GenerationConfig struct {
	Temperature     float32
	MaxOutputTokens int32
}

// Completion is the raw generative outcome. A non-empty BlockReason means
// the provider refused to produce output.
type Completion struct {
	Text        string
	BlockReason string
}

// Generator turns an ordered message list into a completion. Transport
// faults are returned as errors; safety blocks are reported in-band.
type Generator interface {
	Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (Completion, error)
	Name() string
}

// Embedder encodes text into the vector space the index was built with.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

var (
	ErrNoMessages        = errors.New("no messages provided")
	ErrMissingCredential = errors.New("provider credential not configured")
	ErrEmptyEmbedding    = errors.New("provider returned no embedding")
)
