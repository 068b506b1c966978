// File path: internal/vector/flat.go
package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FlatIndex is an exact squared-L2 index held in memory. It is immutable once
// loaded and safe for concurrent searches.
type FlatIndex struct {
	dimension int
	vectors   [][]float32
}

type flatIndexFile struct {
	Dimension int         `json:"dimension"`
	Vectors   [][]float32 `json:"vectors"`
}

// NewFlatIndex validates the vectors and wraps them in an index.
func NewFlatIndex(dimension int, vectors [][]float32) (*FlatIndex, error) {
	if dimension <= 0 {
		dimension = VectorDimension(vectors)
	}
	if dimension <= 0 && len(vectors) > 0 {
		return nil, fmt.Errorf("flat index: invalid dimension %d", dimension)
	}
	for i, vec := range vectors {
		if len(vec) != dimension {
			return nil, fmt.Errorf("flat index: vector %d has dimension %d, want %d", i, len(vec), dimension)
		}
	}
	return &FlatIndex{dimension: dimension, vectors: vectors}, nil
}

// LoadFlatIndex reads a serialized index of the form
// {"dimension": n, "vectors": [[...], ...]}.
func LoadFlatIndex(path string) (*FlatIndex, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var file flatIndexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	return NewFlatIndex(file.Dimension, file.Vectors)
}

func (f *FlatIndex) Len() int {
	if f == nil {
		return 0
	}
	return len(f.vectors)
}

func (f *FlatIndex) Dimension() int {
	if f == nil {
		return 0
	}
	return f.dimension
}

// Vectors exposes the stored vectors for bulk export. Callers must not
// modify the returned slices.
func (f *FlatIndex) Vectors() [][]float32 {
	if f == nil {
		return nil
	}
	return f.vectors
}

// Search returns the k closest slots by squared Euclidean distance, ties
// broken by slot order. When k exceeds the index size the result is padded
// with slot -1.
func (f *FlatIndex) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if f == nil {
		return nil, ErrIndexUnavailable
	}
	if k <= 0 {
		return nil, nil
	}
	if len(f.vectors) == 0 {
		return padHits(nil, k), nil
	}
	if len(vector) != f.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), f.dimension)
	}
	hits := make([]Hit, 0, len(f.vectors))
	for slot, candidate := range f.vectors {
		if slot%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hits = append(hits, Hit{Slot: slot, Distance: squaredL2(vector, candidate)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return padHits(hits, k), nil
}

// padHits fills hits up to k with the -1 slot.
func padHits(hits []Hit, k int) []Hit {
	for len(hits) < k {
		hits = append(hits, Hit{Slot: -1})
	}
	return hits
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func VectorDimension(v [][]float32) int {
	for _, vec := range v {
		if len(vec) > 0 {
			return len(vec)
		}
	}
	return 0
}

var _ Index = (*FlatIndex)(nil)
