// Package server exposes the REST API under /api/v2: auth, leads,
// organizations, and billing. Handlers validate, enforce tenancy and
// quota, and enqueue jobs; pipeline work never runs in a request.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/leadboost/leadboost/internal/auth"
	"github.com/leadboost/leadboost/internal/config"
	"github.com/leadboost/leadboost/internal/quota"
	"github.com/leadboost/leadboost/internal/store"
)

const (
	serviceName    = "LeadBoost SaaS API"
	serviceVersion = "2.0.0"
)

// Server holds the API dependencies.
type Server struct {
	store   store.Store
	gate    *quota.Gate
	catalog *quota.Catalog
	tokens  *auth.TokenManager
	cfg     config.ServerConfig
}

// New creates a server.
func New(
	st store.Store,
	gate *quota.Gate,
	catalog *quota.Catalog,
	tokens *auth.TokenManager,
	cfg config.ServerConfig,
) *Server {
	return &Server{store: st, gate: gate, catalog: catalog, tokens: tokens, cfg: cfg}
}

// Router builds the full middleware and route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	if s.cfg.RateLimitPerMin > 0 {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitPerMin, time.Minute))
	}
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v2", func(api chi.Router) {
		api.Post("/register", s.handleRegister)
		api.Post("/login", s.handleLogin)
		api.Post("/refresh", s.handleRefresh)

		api.Group(func(pr chi.Router) {
			pr.Use(s.authenticate)

			pr.Get("/me", s.handleGetMe)
			pr.Put("/me", s.handleUpdateMe)

			pr.Route("/leads", func(lr chi.Router) {
				lr.Post("/", s.handleCreateLeads)
				lr.Post("/single", s.handleCreateSingleLead)
				lr.Get("/", s.handleListLeads)
				lr.Get("/{id}", s.handleGetLead)
				lr.Put("/{id}", s.handleUpdateLead)
				lr.Delete("/{id}", s.handleDeleteLead)
				lr.Post("/{id}/process", s.handleProcessLead)
			})

			pr.Route("/organizations", func(or chi.Router) {
				or.Post("/", s.handleCreateOrganization)
				or.Get("/", s.handleGetOwnOrganization)
				or.Get("/{id}", s.handleGetOrganization)
				or.Put("/{id}", s.handleUpdateOrganization)
			})

			pr.Route("/billing", func(br chi.Router) {
				br.Get("/usage", s.handleUsage)
				br.Post("/upgrade", s.handleUpgrade)
				br.Get("/plans", s.handlePlans)
				br.Post("/cancel", s.handleCancel)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeDetail writes the error envelope used by every handler.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// unauthorized writes a 401 with the Bearer challenge header.
func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, detail)
}
