// File path: internal/sqlite/seed.go
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
)

// SeedData is the JSON document accepted by LoadSeedFile. Every slice is
// optional; rows are upserted (laptops) or appended (history tables).
type SeedData struct {
	Laptops   []Laptop       `json:"laptops"`
	Prices    []PriceRecord  `json:"prices"`
	Reviews   []ReviewRecord `json:"reviews"`
	Questions []QARecord     `json:"questions"`
}

// LoadSeedFile reads a SeedData document from disk.
func LoadSeedFile(path string) (SeedData, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return SeedData{}, fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedData
	if err := json.Unmarshal(data, &seed); err != nil {
		return SeedData{}, fmt.Errorf("parse seed file: %w", err)
	}
	return seed, nil
}

// Seed writes the provided rows in a single transaction.
func (s *Store) Seed(ctx context.Context, seed SeedData) error {
	if s == nil || s.db == nil {
		return errNilStore
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, laptop := range seed.Laptops {
			if err := upsertLaptop(ctx, tx, laptop); err != nil {
				return err
			}
		}
		for _, price := range seed.Prices {
			if err := insertPrice(ctx, tx, price); err != nil {
				return err
			}
		}
		for _, review := range seed.Reviews {
			if _, err := tx.NamedExecContext(ctx,
				`INSERT INTO Review(laptop_sku, rating, review_text, date, source)
                                 VALUES(:laptop_sku, :rating, :review_text, :date, :source)`, review); err != nil {
				return fmt.Errorf("insert review for %s: %w", review.LaptopSKU, err)
			}
		}
		for _, qa := range seed.Questions {
			if _, err := tx.NamedExecContext(ctx,
				`INSERT INTO QuestionAnswer(laptop_sku, question_text, answer_text, date, source)
                                 VALUES(:laptop_sku, :question_text, :answer_text, :date, :source)`, qa); err != nil {
				return fmt.Errorf("insert question for %s: %w", qa.LaptopSKU, err)
			}
		}
		return nil
	})
}

// UpsertLaptop inserts or replaces a single catalog row.
func (s *Store) UpsertLaptop(ctx context.Context, laptop Laptop) error {
	return s.Seed(ctx, SeedData{Laptops: []Laptop{laptop}})
}

// AddPrice appends a price observation.
func (s *Store) AddPrice(ctx context.Context, price PriceRecord) error {
	return s.Seed(ctx, SeedData{Prices: []PriceRecord{price}})
}

func upsertLaptop(ctx context.Context, tx *sqlx.Tx, laptop Laptop) error {
	if strings.TrimSpace(laptop.SKU) == "" {
		return fmt.Errorf("laptop sku required")
	}
	query := `INSERT INTO Laptop(sku, brand, model_name, currency, availability, shipping_eta, review_count, average_rating)
                VALUES(:sku, :brand, :model_name, :currency, :availability, :shipping_eta, :review_count, :average_rating)
                ON CONFLICT(sku) DO UPDATE SET
                        brand = excluded.brand,
                        model_name = excluded.model_name,
                        currency = excluded.currency,
                        availability = excluded.availability,
                        shipping_eta = excluded.shipping_eta,
                        review_count = excluded.review_count,
                        average_rating = excluded.average_rating`
	if _, err := tx.NamedExecContext(ctx, query, laptop); err != nil {
		return fmt.Errorf("upsert laptop %s: %w", laptop.SKU, err)
	}
	return nil
}

func insertPrice(ctx context.Context, tx *sqlx.Tx, price PriceRecord) error {
	if strings.TrimSpace(price.LaptopSKU) == "" || strings.TrimSpace(price.Date) == "" {
		return fmt.Errorf("price record requires sku and date")
	}
	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO PriceHistory(laptop_sku, price, date, vendor_name, promo_badges)
                 VALUES(:laptop_sku, :price, :date, :vendor_name, :promo_badges)`, price); err != nil {
		return fmt.Errorf("insert price for %s: %w", price.LaptopSKU, err)
	}
	return nil
}
