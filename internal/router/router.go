package router

import (
	"net/http"

	"nftmarket-api/internal/handler"
	"nftmarket-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	MarketHandler  *handler.MarketHandler
	ItemHandler    *handler.ItemHandler
	AccountHandler *handler.AccountHandler
	AdminHandler   *handler.AdminHandler
	AuthMiddleware func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC monitoring route
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check endpoints
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// Marketplace and listing endpoints
		if cfg.MarketHandler != nil {
			r.Route("/marketplaces", func(r chi.Router) {
				r.Post("/", cfg.MarketHandler.Initialize)
				r.Route("/{address}", func(r chi.Router) {
					r.Get("/", cfg.MarketHandler.GetMarketplace)
					r.Route("/listings", func(r chi.Router) {
						r.Post("/", cfg.MarketHandler.List)
						r.Route("/{item}", func(r chi.Router) {
							r.Get("/", cfg.MarketHandler.GetListing)
							r.Post("/purchase", cfg.MarketHandler.Purchase)
							r.Post("/redeem", cfg.MarketHandler.Redeem)
						})
					})
				})
			})
		}

		// Item endpoints
		if cfg.ItemHandler != nil {
			r.Route("/items", func(r chi.Router) {
				r.Post("/", cfg.ItemHandler.Create)
				r.Route("/{address}", func(r chi.Router) {
					r.Get("/", cfg.ItemHandler.Get)
					r.Patch("/", cfg.ItemHandler.Update)
				})
			})
		}

		// Account balance lookups
		if cfg.AccountHandler != nil {
			r.Get("/accounts/{address}", cfg.AccountHandler.Get)
		}

		// ADMIN routes (API-key auth required)
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}

			r.Route("/admin", func(r chi.Router) {
				if cfg.AdminHandler != nil {
					r.Get("/stats", cfg.AdminHandler.GetStats)
				}
				if cfg.AccountHandler != nil {
					r.Post("/accounts/{address}/credit", cfg.AccountHandler.Credit)
				}
			})
		})
	})

	return r
}
