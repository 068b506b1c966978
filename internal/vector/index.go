// File path: internal/vector/index.go
package vector

import (
	"context"
	"errors"
)

// Hit is one nearest-neighbour result: the vector slot and its distance to
// the query under the index's metric.
type Hit struct {
	Slot     int
	Distance float32
}

// Index is the nearest-neighbour search collaborator. Slot -1 marks padding
// returned when fewer than k vectors exist.
type Index interface {
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
	Len() int
}

var (
	ErrDimensionMismatch = errors.New("query dimension does not match index")
	ErrIndexUnavailable  = errors.New("vector index unavailable")
)
