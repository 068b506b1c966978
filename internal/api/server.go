// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/nicodishanthj/laptop-insights/internal/common"
	"github.com/nicodishanthj/laptop-insights/internal/common/telemetry"
	"github.com/nicodishanthj/laptop-insights/internal/pipeline"
	"github.com/nicodishanthj/laptop-insights/internal/sqlite"
)

var errCatalogUnavailable = errors.New("catalog database not loaded")

type Server struct {
	router   chi.Router
	pipeline *pipeline.Orchestrator
	catalog  *sqlite.Store
	validate *validator.Validate
}

// NewServer builds the HTTP surface. catalog may be nil, in which case the
// catalog endpoints answer 503.
func NewServer(orch *pipeline.Orchestrator, catalog *sqlite.Store) *Server {
	logger := common.Logger()
	srv := &Server{
		router:   chi.NewRouter(),
		pipeline: orch,
		catalog:  catalog,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	srv.routes()
	logger.Info("api: server ready", "pipeline_ready", orch.Ready(), "catalog", catalog != nil)
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start),
				"remote", r.RemoteAddr, "request_id", middleware.GetReqID(r.Context()))
		})
	})

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Welcome to the Laptop Insights API.",
		})
	})
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/readyz", s.handleReady)
	s.router.Method(http.MethodGet, "/metrics", telemetry.Handler())
	s.router.Get("/v1/logs", s.handleLogs)

	s.router.Post("/chat", s.handleChat)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/laptops", s.handleLaptops)
		r.Route("/laptops/{sku}", func(r chi.Router) {
			r.Get("/price-history", s.handlePriceHistory)
			r.Get("/reviews", s.handleReviews)
			r.Get("/qanda", s.handleQandA)
		})
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.pipeline.Ready() {
		writeError(w, http.StatusServiceUnavailable, s.pipeline.Err())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": common.LogEntries()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
