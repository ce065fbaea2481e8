package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/avalontax/tax-engine/internal/api/handlers"
	custommiddleware "github.com/avalontax/tax-engine/internal/api/middleware"
	"github.com/avalontax/tax-engine/internal/config"
	"github.com/avalontax/tax-engine/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	systemService *service.SystemService,
	taxpayerService *service.TaxpayerService,
	processorService *service.ProcessorService,
	cfg *config.Config,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(systemService)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/taxpayers", func(r chi.Router) {
			taxpayerHandler := handlers.NewTaxpayerHandler(taxpayerService, processorService)
			r.Get("/", taxpayerHandler.Taxpayers)
			r.Get("/{taxpayerId}", taxpayerHandler.Taxpayer)
			r.Get("/{taxpayerId}/computation", taxpayerHandler.Computation)
			r.Get("/{taxpayerId}/gains", taxpayerHandler.RealizedGains)
			r.Post("/{taxpayerId}/reprocess", taxpayerHandler.Reprocess)
		})
	})

	return r
}
