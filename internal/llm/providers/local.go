// File path: internal/llm/providers/local.go
package providers

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalProvider is an offline stand-in: generation echoes the final prompt
// and embeddings are hashed bag-of-words vectors.
type LocalProvider struct {
	dimension int
}

func NewLocalProvider(dimension int) *LocalProvider {
	if dimension <= 0 {
		dimension = 64
	}
	return &LocalProvider{dimension: dimension}
}

func (l *LocalProvider) Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (Completion, error) {
	if len(messages) == 0 {
		return Completion{}, ErrNoMessages
	}
	if err := ctx.Err(); err != nil {
		return Completion{}, err
	}
	last := messages[len(messages)-1].Content
	return Completion{Text: "[local-stub] " + strings.TrimSpace(last)}, nil
}

// Embed hashes lower-cased word tokens into buckets and L2-normalises the
// result.
func (l *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vector := make([]float32, l.dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		h := fnv.New32a()
		h.Write([]byte(token))
		vector[h.Sum32()%uint32(l.dimension)]++
	}
	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector, nil
}

func (l *LocalProvider) Name() string {
	return "local"
}

var (
	_ Generator = (*LocalProvider)(nil)
	_ Embedder  = (*LocalProvider)(nil)
)
