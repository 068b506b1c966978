// File path: cmd/laptopd/tools.go
package main

import (
	"context"
	"fmt"

	"github.com/nicodishanthj/laptop-insights/internal/common"
	"github.com/nicodishanthj/laptop-insights/internal/config"
	"github.com/nicodishanthj/laptop-insights/internal/sqlite"
	"github.com/nicodishanthj/laptop-insights/internal/vector"
)

// seedCatalog creates the database at dbPath when missing and loads the rows
// from seedPath into it.
func seedCatalog(ctx context.Context, dbPath, seedPath string) error {
	logger := common.Logger()
	seed, err := sqlite.LoadSeedFile(seedPath)
	if err != nil {
		return err
	}
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	if err := store.Seed(ctx, seed); err != nil {
		return err
	}
	logger.Info("laptopd: catalog seeded", "db", store.Path(), "laptops", len(seed.Laptops),
		"prices", len(seed.Prices), "reviews", len(seed.Reviews), "questions", len(seed.Questions))
	return nil
}

// syncChromaCollection upserts every slot of the flat index into the
// configured ChromaDB collection so the chroma backend serves the same slots.
func syncChromaCollection(ctx context.Context, cfg config.Config) error {
	logger := common.Logger()
	flat, err := vector.LoadFlatIndex(cfg.IndexPath)
	if err != nil {
		return err
	}
	metadata, err := vector.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return err
	}
	if flat.Len() != metadata.Len() {
		return fmt.Errorf("index has %d vectors but metadata has %d records", flat.Len(), metadata.Len())
	}
	chroma, err := vector.NewChromaFromEnv(ctx)
	if err != nil {
		return err
	}
	defer chroma.Close()
	if err := chroma.UpsertSlots(ctx, metadata.Records(), flat.Vectors()); err != nil {
		return err
	}
	logger.Info("laptopd: chroma collection synced", "collection", chroma.Collection(), "slots", flat.Len())
	return nil
}
