// Package server wires the analytics routes and applies the middleware
// chain (RequestID → CORS → Metrics → Timeout).
package server

import (
	"net/http"

	"github.com/petadopt/adoption-analytics/internal/analytics"
	"github.com/petadopt/adoption-analytics/pkg/config"
	"github.com/petadopt/adoption-analytics/pkg/health"
	"github.com/petadopt/adoption-analytics/pkg/metrics"
	"github.com/petadopt/adoption-analytics/pkg/middleware"
)

// NewRouter builds the full HTTP handler.
//
// Route table:
//
//	GET /                                 → banner
//	GET /analytics/pets-by-species        → pet store
//	GET /analytics/adopted-by-center      → pet store
//	GET /analytics/requests-status        → pet store
//	GET /analytics/vaccination-status     → pet store
//	GET /analytics/pet-histories?limit=N  → document store
//	GET /analytics/mongodb-health         → document store
//	GET /analytics/users-with-adoptions   → pet store + requests store
//	GET /analytics/full-adoption-report   → all three stores
//	GET /health/live                      → liveness
//	GET /health/ready                     → store pings
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → Timeout → handler
//
// m may be nil, which disables the metrics middleware.
func NewRouter(h *analytics.Handler, checker *health.Checker, m *metrics.Metrics, cfg config.ServerConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Root)

	// Single-store reports
	mux.HandleFunc("GET /analytics/pets-by-species", h.PetsBySpecies)
	mux.HandleFunc("GET /analytics/adopted-by-center", h.AdoptedByCenter)
	mux.HandleFunc("GET /analytics/requests-status", h.RequestsStatus)
	mux.HandleFunc("GET /analytics/vaccination-status", h.VaccinationStatus)
	mux.HandleFunc("GET /analytics/pet-histories", h.PetHistories)
	mux.HandleFunc("GET /analytics/mongodb-health", h.DocumentStoreHealth)

	// Cross-store reports
	mux.HandleFunc("GET /analytics/users-with-adoptions", h.UsersWithAdoptions)
	mux.HandleFunc("GET /analytics/full-adoption-report", h.FullAdoptionReport)

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	// Middleware chain, applied inside-out.
	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	cors := middleware.DefaultCORSConfig()
	if len(cfg.AllowOrigins) > 0 {
		cors.AllowOrigins = cfg.AllowOrigins
	}
	chain = middleware.CORS(cors)(chain)
	chain = middleware.RequestID(chain)

	return chain
}
