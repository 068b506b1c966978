// File path: internal/api/catalog_handler.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/nicodishanthj/laptop-insights/internal/sqlite"
)

func (s *Server) handleLaptops(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, errCatalogUnavailable)
		return
	}
	params := r.URL.Query()
	query := laptopQuery{
		Brand:        strings.TrimSpace(params.Get("brand")),
		Availability: strings.TrimSpace(params.Get("availability")),
	}
	if raw := strings.TrimSpace(params.Get("min_rating")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("min_rating must be a number: %w", err))
			return
		}
		query.MinRating = &value
	}
	if err := s.validate.Struct(query); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("min_rating must be between 0.0 and 5.0"))
		return
	}
	laptops, err := s.catalog.ListLaptops(r.Context(), sqlite.LaptopFilter{
		Brand:        query.Brand,
		MinRating:    query.MinRating,
		Availability: query.Availability,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("database query error: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, laptops)
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	serveSKUList(s, w, r, s.catalog.PriceHistory)
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	serveSKUList(s, w, r, s.catalog.Reviews)
}

func (s *Server) handleQandA(w http.ResponseWriter, r *http.Request) {
	serveSKUList(s, w, r, s.catalog.QandA)
}

// serveSKUList answers 404 for SKUs missing from the catalog before running
// the per-SKU query.
func serveSKUList[T any](s *Server, w http.ResponseWriter, r *http.Request, load func(context.Context, string) ([]T, error)) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, errCatalogUnavailable)
		return
	}
	ctx := r.Context()
	sku := chi.URLParam(r, "sku")
	exists, err := s.catalog.LaptopExists(ctx, sku)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("database query error: %w", err))
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("laptop SKU '%s' not found in catalog", sku))
		return
	}
	rows, err := load(ctx, sku)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("database query error: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
