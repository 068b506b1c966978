// File path: internal/data/artifacts/bundle.go
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nicodishanthj/laptop-insights/internal/common"
	"github.com/nicodishanthj/laptop-insights/internal/config"
	"github.com/nicodishanthj/laptop-insights/internal/facts"
	"github.com/nicodishanthj/laptop-insights/internal/llm"
	"github.com/nicodishanthj/laptop-insights/internal/sqlite"
	"github.com/nicodishanthj/laptop-insights/internal/vector"
)

// ReadinessError lists every startup dependency that failed to load.
type ReadinessError struct {
	Err error
}

func (e *ReadinessError) Error() string {
	return "artifacts not ready: " + e.Err.Error()
}

func (e *ReadinessError) Unwrap() error {
	return e.Err
}

// Bundle holds the process-wide handles loaded at startup. It is immutable
// after Load returns and either fully ready or not ready at all. The catalog
// store sits outside the readiness gate and stays open whenever it loaded.
type Bundle struct {
	cfg config.Config
	err error

	index      vector.Index
	metadata   *vector.Metadata
	store      *sqlite.Store
	factSource facts.Source
	generator  llm.Generator
	embedder   llm.Embedder

	closers   []io.Closer
	ownsStore bool
}

// Load opens every artifact named by cfg. Failures never abort the process:
// they are collected into a ReadinessError and every handle is released.
func Load(ctx context.Context, cfg config.Config, opts ...Option) *Bundle {
	settings := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	logger := common.Logger()
	b := &Bundle{cfg: cfg}
	var errs []error

	b.metadata = settings.metadata
	if b.metadata == nil {
		metadata, err := vector.LoadMetadata(cfg.MetadataPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("metadata %s: %w", cfg.MetadataPath, err))
		}
		b.metadata = metadata
	}

	dimension := 0
	b.index = settings.index
	if b.index == nil {
		index, dim, err := b.openIndex(ctx, cfg)
		if err != nil {
			errs = append(errs, err)
		} else {
			b.index = index
			dimension = dim
		}
	}
	if b.index != nil && b.metadata != nil && b.index.Len() != b.metadata.Len() {
		errs = append(errs, fmt.Errorf("index has %d vectors but metadata has %d records", b.index.Len(), b.metadata.Len()))
	}

	b.store = settings.store
	if b.store == nil && settings.factSource == nil {
		store, err := openStore(cfg.DBPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("database %s: %w", cfg.DBPath, err))
		} else {
			b.store = store
			b.ownsStore = true
		}
	}
	b.factSource = settings.factSource
	if b.factSource == nil && b.store != nil {
		b.factSource = b.store
	}

	b.generator = settings.generator
	b.embedder = settings.embedder
	if b.generator == nil || b.embedder == nil {
		clients, err := llm.NewClients(ctx, cfg, dimension)
		if err != nil {
			errs = append(errs, fmt.Errorf("llm clients: %w", err))
		} else {
			b.closers = append(b.closers, clients)
			if b.generator == nil {
				b.generator = clients.Generator
			}
			if b.embedder == nil {
				b.embedder = clients.Embedder
			}
		}
	}

	if len(errs) > 0 {
		b.err = &ReadinessError{Err: errors.Join(errs...)}
		if cerr := b.release(); cerr != nil {
			logger.Warn("artifacts: release after failed load", "error", cerr)
		}
		logger.Warn("artifacts: system not ready", "error", b.err)
		return b
	}
	logger.Info("artifacts: loaded", "backend", cfg.IndexBackend, "vectors", b.index.Len())
	return b
}

func (b *Bundle) openIndex(ctx context.Context, cfg config.Config) (vector.Index, int, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.IndexBackend)) {
	case "", "flat":
		index, err := vector.LoadFlatIndex(cfg.IndexPath)
		if err != nil {
			return nil, 0, fmt.Errorf("index %s: %w", cfg.IndexPath, err)
		}
		return index, index.Dimension(), nil
	case "chroma":
		index, err := vector.NewChromaFromEnv(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("chroma index: %w", err)
		}
		b.closers = append(b.closers, index)
		return index, 0, nil
	default:
		return nil, 0, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}
}

func openStore(path string) (*sqlite.Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path not configured")
	}
	cfg, err := sqlite.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg = cfg.Merge(sqlite.Config{Path: path, MustExist: true})
	return sqlite.OpenWithConfig(cfg)
}

// NotReady builds a bundle that rejects every request with err.
func NotReady(err error) *Bundle {
	if err == nil {
		err = errors.New("artifacts not loaded")
	}
	return &Bundle{err: &ReadinessError{Err: err}}
}

// Ready reports whether every artifact loaded.
func (b *Bundle) Ready() bool {
	return b != nil && b.err == nil
}

// Err returns the ReadinessError when the bundle is not ready.
func (b *Bundle) Err() error {
	if b == nil {
		return &ReadinessError{Err: errors.New("artifacts not loaded")}
	}
	return b.err
}

func (b *Bundle) Config() config.Config {
	if b == nil {
		return config.Config{}
	}
	return b.cfg
}

func (b *Bundle) Index() vector.Index {
	if !b.Ready() {
		return nil
	}
	return b.index
}

func (b *Bundle) Metadata() *vector.Metadata {
	if !b.Ready() {
		return nil
	}
	return b.metadata
}

// Catalog exposes the relational store for pass-through reads, ready or
// not. It is nil when the database failed to open or facts come from an
// injected source.
func (b *Bundle) Catalog() *sqlite.Store {
	if b == nil {
		return nil
	}
	return b.store
}

func (b *Bundle) FactSource() facts.Source {
	if !b.Ready() {
		return nil
	}
	return b.factSource
}

func (b *Bundle) Generator() llm.Generator {
	if !b.Ready() {
		return nil
	}
	return b.generator
}

func (b *Bundle) Embedder() llm.Embedder {
	if !b.Ready() {
		return nil
	}
	return b.embedder
}

// Close releases any resources associated with the bundle.
func (b *Bundle) Close() error {
	if b == nil {
		return nil
	}
	err := b.release()
	if b.ownsStore && b.store != nil {
		err = errors.Join(err, b.store.Close())
		b.ownsStore = false
	}
	return err
}

// release closes the gated handles and leaves the catalog store open.
func (b *Bundle) release() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if cerr := b.closers[i].Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	b.closers = nil
	return err
}

// Loader runs Load at most once per process.
type Loader struct {
	once   sync.Once
	bundle *Bundle
}

func (l *Loader) Load(ctx context.Context, cfg config.Config, opts ...Option) *Bundle {
	l.once.Do(func() {
		l.bundle = Load(ctx, cfg, opts...)
	})
	return l.bundle
}
