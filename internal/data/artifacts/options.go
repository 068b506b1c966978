// File path: internal/data/artifacts/options.go
package artifacts

import (
	"github.com/nicodishanthj/laptop-insights/internal/facts"
	"github.com/nicodishanthj/laptop-insights/internal/llm"
	"github.com/nicodishanthj/laptop-insights/internal/sqlite"
	"github.com/nicodishanthj/laptop-insights/internal/vector"
)

type Option func(*options)

type options struct {
	index      vector.Index
	metadata   *vector.Metadata
	store      *sqlite.Store
	factSource facts.Source
	generator  llm.Generator
	embedder   llm.Embedder
}

// WithIndex injects a nearest-neighbour index instead of loading one.
func WithIndex(index vector.Index) Option {
	return func(o *options) {
		o.index = index
	}
}

// WithMetadata injects slot metadata instead of reading the metadata file.
func WithMetadata(metadata *vector.Metadata) Option {
	return func(o *options) {
		o.metadata = metadata
	}
}

// WithStore injects an already opened relational store.
func WithStore(store *sqlite.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithFactSource replaces the store as the source of dynamic facts.
// Primarily used in tests.
func WithFactSource(source facts.Source) Option {
	return func(o *options) {
		o.factSource = source
	}
}

// WithGenerator injects the generative model client.
func WithGenerator(generator llm.Generator) Option {
	return func(o *options) {
		o.generator = generator
	}
}

// WithEmbedder injects the embedding client.
func WithEmbedder(embedder llm.Embedder) Option {
	return func(o *options) {
		o.embedder = embedder
	}
}
