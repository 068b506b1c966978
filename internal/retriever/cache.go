// File path: internal/retriever/cache.go
package retriever

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// embeddingCache memoises query vectors. Only the query embedding is cached;
// dynamic facts never are.
type embeddingCache struct {
	cache *lru.Cache[string, []float32]
}

func newEmbeddingCache(size int) *embeddingCache {
	if size <= 0 {
		return nil
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil
	}
	return &embeddingCache{cache: cache}
}

func cacheKey(query string) string {
	return strings.TrimSpace(query)
}

func (c *embeddingCache) Get(query string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	return c.cache.Get(cacheKey(query))
}

func (c *embeddingCache) Set(query string, vector []float32) {
	if c == nil {
		return
	}
	c.cache.Add(cacheKey(query), vector)
}
