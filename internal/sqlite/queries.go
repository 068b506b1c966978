// File path: internal/sqlite/queries.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
)

var laptopColumns = []string{
	"sku", "brand", "model_name", "currency", "availability",
	"shipping_eta", "review_count", "average_rating",
}

// ListLaptops returns catalog rows matching the filter, ordered by SKU.
// Brand and availability compare case-insensitively.
func (s *Store) ListLaptops(ctx context.Context, filter LaptopFilter) ([]Laptop, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	builder := squirrel.Select(laptopColumns...).From("Laptop").OrderBy("sku")
	if brand := strings.TrimSpace(filter.Brand); brand != "" {
		builder = builder.Where("LOWER(brand) = LOWER(?)", brand)
	}
	if filter.MinRating != nil {
		builder = builder.Where(squirrel.GtOrEq{"average_rating": *filter.MinRating})
	}
	if availability := strings.TrimSpace(filter.Availability); availability != "" {
		builder = builder.Where("LOWER(availability) = LOWER(?)", availability)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build laptop query: %w", err)
	}
	laptops := []Laptop{}
	if err := s.db.SelectContext(ctx, &laptops, query, args...); err != nil {
		return nil, fmt.Errorf("select laptops: %w", err)
	}
	return laptops, nil
}

// LaptopExists reports whether the SKU is present in the catalog.
func (s *Store) LaptopExists(ctx context.Context, sku string) (bool, error) {
	if err := s.ensureReady(); err != nil {
		return false, err
	}
	var one int
	err := s.db.GetContext(ctx, &one, `SELECT 1 FROM Laptop WHERE sku = ?`, sku)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check laptop: %w", err)
	}
	return true, nil
}

// PriceHistory returns every price record for the SKU, newest first.
func (s *Store) PriceHistory(ctx context.Context, sku string) ([]PriceRecord, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	records := []PriceRecord{}
	if err := s.db.SelectContext(ctx, &records,
		`SELECT id, laptop_sku, price, date, vendor_name, promo_badges
                 FROM PriceHistory WHERE laptop_sku = ? ORDER BY date DESC, id DESC`, sku); err != nil {
		return nil, fmt.Errorf("select price history: %w", err)
	}
	return records, nil
}

// Reviews returns every review for the SKU, newest first.
func (s *Store) Reviews(ctx context.Context, sku string) ([]ReviewRecord, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	records := []ReviewRecord{}
	if err := s.db.SelectContext(ctx, &records,
		`SELECT id, laptop_sku, rating, review_text, date, source
                 FROM Review WHERE laptop_sku = ? ORDER BY date DESC, id DESC`, sku); err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	return records, nil
}

// QandA returns every question/answer pair for the SKU, newest first.
func (s *Store) QandA(ctx context.Context, sku string) ([]QARecord, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	records := []QARecord{}
	if err := s.db.SelectContext(ctx, &records,
		`SELECT id, laptop_sku, question_text, answer_text, date, source
                 FROM QuestionAnswer WHERE laptop_sku = ? ORDER BY date DESC, id DESC`, sku); err != nil {
		return nil, fmt.Errorf("select q&a: %w", err)
	}
	return records, nil
}

// Snapshot loads the latest price record and the catalog row for the SKU on
// a single pooled connection. The connection is returned to the pool before
// Snapshot returns, on every path.
func (s *Store) Snapshot(ctx context.Context, sku string) (Snapshot, error) {
	if err := s.ensureReady(); err != nil {
		return Snapshot{}, err
	}
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	var snap Snapshot
	var price PriceRecord
	err = conn.GetContext(ctx, &price,
		`SELECT id, laptop_sku, price, date, vendor_name, promo_badges
                 FROM PriceHistory WHERE laptop_sku = ? ORDER BY date DESC, id DESC LIMIT 1`, sku)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Snapshot{}, fmt.Errorf("select latest price: %w", err)
	default:
		snap.LatestPrice = &price
	}

	var laptop Laptop
	err = conn.GetContext(ctx, &laptop,
		`SELECT `+strings.Join(laptopColumns, ", ")+` FROM Laptop WHERE sku = ?`, sku)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Snapshot{}, fmt.Errorf("select laptop: %w", err)
	default:
		snap.Laptop = &laptop
	}
	return snap, nil
}
