// File path: internal/retriever/retriever.go
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nicodishanthj/laptop-insights/internal/common"
	"github.com/nicodishanthj/laptop-insights/internal/common/telemetry"
	"github.com/nicodishanthj/laptop-insights/internal/vector"
)

// Embedder describes the minimal contract needed to generate vectors for
// queries against the index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MetadataLookup resolves a vector slot to its passage record.
type MetadataLookup interface {
	Lookup(slot int) (vector.Record, error)
}

// Passage is one ranked unit of static laptop specification text.
type Passage struct {
	SKU          string  `json:"sku"`
	Text         string  `json:"text"`
	SectionTitle string  `json:"section_title,omitempty"`
	Citations    []int   `json:"citations,omitempty"`
	Distance     float32 `json:"distance"`
}

type Stage string

const (
	StageEmbed    Stage = "embed"
	StageSearch   Stage = "search"
	StageMetadata Stage = "metadata"
)

// RetrievalError reports an embedding or search failure, or a slot the
// metadata does not describe.
type RetrievalError struct {
	Stage Stage
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed at %s: %v", e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

type Retriever struct {
	embedder Embedder
	index    vector.Index
	metadata MetadataLookup
	cache    *embeddingCache
}

type Option func(*Retriever)

// WithCacheSize controls how many query embeddings are memoised. Zero
// disables the cache.
func WithCacheSize(size int) Option {
	return func(r *Retriever) {
		r.cache = newEmbeddingCache(size)
	}
}

func New(embedder Embedder, index vector.Index, metadata MetadataLookup, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		index:    index,
		metadata: metadata,
		cache:    newEmbeddingCache(256),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Retrieve returns at most k passages ordered by ascending distance, ties
// kept in index order. Padding slots (-1) are skipped.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		return []Passage{}, nil
	}
	ctx, end := telemetry.StartSpan(ctx, "retriever.retrieve")
	logger := common.Logger()

	queryVector, err := r.embed(ctx, query)
	if err != nil {
		end("error", err)
		return nil, &RetrievalError{Stage: StageEmbed, Err: err}
	}
	hits, err := r.index.Search(ctx, queryVector, k)
	if err != nil {
		end("error", err)
		return nil, &RetrievalError{Stage: StageSearch, Err: err}
	}

	passages := make([]Passage, 0, len(hits))
	for _, hit := range hits {
		if hit.Slot < 0 {
			continue
		}
		record, err := r.metadata.Lookup(hit.Slot)
		if err != nil {
			logger.Error("retriever: index and metadata out of sync", "slot", hit.Slot, "error", err)
			end("error", err)
			return nil, &RetrievalError{Stage: StageMetadata, Err: err}
		}
		passages = append(passages, Passage{
			SKU:          record.SKU,
			Text:         record.Text,
			SectionTitle: record.SectionTitle,
			Citations:    append([]int(nil), record.Citations...),
			Distance:     hit.Distance,
		})
	}
	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Distance < passages[j].Distance
	})
	if len(passages) > k {
		passages = passages[:k]
	}
	end("passages", len(passages))
	return passages, nil
}

func (r *Retriever) embed(ctx context.Context, query string) ([]float32, error) {
	if r.embedder == nil {
		return nil, errors.New("embedder not configured")
	}
	query = strings.TrimSpace(query)
	if cached, ok := r.cache.Get(query); ok {
		telemetry.RecordEmbeddingCache(true)
		return cached, nil
	}
	if r.cache != nil {
		telemetry.RecordEmbeddingCache(false)
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	r.cache.Set(query, vec)
	return vec, nil
}

// DistinctSKUs returns the sorted distinct product identifiers referenced by
// passages.
func DistinctSKUs(passages []Passage) []string {
	seen := make(map[string]struct{}, len(passages))
	skus := make([]string, 0, len(passages))
	for _, p := range passages {
		if p.SKU == "" {
			continue
		}
		if _, ok := seen[p.SKU]; ok {
			continue
		}
		seen[p.SKU] = struct{}{}
		skus = append(skus, p.SKU)
	}
	sort.Strings(skus)
	return skus
}
