// File path: internal/facts/facts.go
package facts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/nicodishanthj/laptop-insights/internal/common"
	"github.com/nicodishanthj/laptop-insights/internal/common/telemetry"
	"github.com/nicodishanthj/laptop-insights/internal/sqlite"
)

const (
	NotAvailable    = "N/A"
	UnknownCurrency = "Unknown Currency"
)

// Fact is the dynamic snapshot for one SKU. Every field is always set; a
// missing value is NotAvailable.
type Fact struct {
	SKU          string `json:"sku"`
	Price        string `json:"latest_price"`
	Availability string `json:"availability"`
	Rating       string `json:"average_rating"`
	ShippingETA  string `json:"shipping_eta"`
	Vendor       string `json:"vendor"`
}

// Unavailable returns the all-sentinel fact used when a lookup fails.
func Unavailable(sku string) Fact {
	return Fact{
		SKU:          sku,
		Price:        NotAvailable,
		Availability: NotAvailable,
		Rating:       NotAvailable,
		ShippingETA:  NotAvailable,
		Vendor:       NotAvailable,
	}
}

// Source performs the single logical lookup behind a fact.
type Source interface {
	Snapshot(ctx context.Context, sku string) (sqlite.Snapshot, error)
}

type Resolver struct {
	source      Source
	concurrency int
}

type Option func(*Resolver)

// WithConcurrency bounds how many lookups ResolveAll runs at once.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{source: source, concurrency: 4}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve never fails: lookup faults are logged, counted and replaced by
// sentinel values.
func (r *Resolver) Resolve(ctx context.Context, sku string) Fact {
	if r == nil || r.source == nil {
		return Unavailable(sku)
	}
	snap, err := r.source.Snapshot(ctx, sku)
	if err != nil {
		common.Logger().Warn("facts: lookup failed, using sentinels", "sku", sku, "error", err)
		telemetry.RecordFactLookupFailure()
		return Unavailable(sku)
	}
	return FromSnapshot(sku, snap)
}

// ResolveAll resolves each SKU concurrently and returns facts in the order
// of skus.
func (r *Resolver) ResolveAll(ctx context.Context, skus []string) []Fact {
	facts := make([]Fact, len(skus))
	if len(skus) == 0 {
		return facts
	}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	limit := 4
	if r != nil && r.concurrency > 0 {
		limit = r.concurrency
	}
	g.SetLimit(limit)
	for i, sku := range skus {
		g.Go(func() error {
			facts[i] = r.Resolve(gctx, sku)
			return nil
		})
	}
	_ = g.Wait()
	common.Logger().Debug("facts: resolved", "count", len(skus), "dur", time.Since(start))
	return facts
}

// FromSnapshot formats a snapshot into a Fact. A missing catalog row leaves
// every field NotAvailable; a price is still rendered with UnknownCurrency.
func FromSnapshot(sku string, snap sqlite.Snapshot) Fact {
	fact := Unavailable(sku)
	currency := UnknownCurrency
	if laptop := snap.Laptop; laptop != nil {
		if value := trimmed(laptop.Currency); value != "" {
			currency = value
		}
		if value := trimmed(laptop.Availability); value != "" {
			fact.Availability = value
		}
		if value := trimmed(laptop.ShippingETA); value != "" {
			fact.ShippingETA = value
		}
		fact.Rating = FormatRating(laptop.AverageRating, laptop.ReviewCount)
	}
	if price := snap.LatestPrice; price != nil {
		fact.Price = FormatPrice(currency, price.Price, trimmed(price.PromoBadges))
		if value := trimmed(price.VendorName); value != "" {
			fact.Vendor = value
		}
	}
	return fact
}

// FormatPrice renders "{currency} {amount}" with two decimals and appends
// " ({promo})" unless promo is empty or "none" in any case.
func FormatPrice(currency string, amount float64, promo string) string {
	price := fmt.Sprintf("%s %s", currency, decimal.NewFromFloat(amount).StringFixed(2))
	if promo = strings.TrimSpace(promo); promo != "" && !strings.EqualFold(promo, "none") {
		price += " (" + promo + ")"
	}
	return price
}

// FormatRating renders "{avg}/5.0 ({count} reviews)" or NotAvailable when
// either part is missing.
func FormatRating(avg *float64, count *int64) string {
	if avg == nil || count == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%s/5.0 (%d reviews)", decimal.NewFromFloat(*avg).StringFixed(1), *count)
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
