package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/clubmarket/internal/adapter/http/handler"
	"github.com/iho/clubmarket/internal/adapter/http/middleware"
	"github.com/iho/clubmarket/internal/infrastructure/auth"
	"github.com/iho/clubmarket/internal/infrastructure/metrics"
	"github.com/iho/clubmarket/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	OfferHandler          *handler.OfferHandler
	TransferHandler       *handler.TransferHandler
	WalletHandler         *handler.WalletHandler
	ReconciliationHandler *handler.ReconciliationHandler
	MarketHandler         *handler.MarketHandler
	RuleHandler           *handler.RuleHandler
	ClubHandler           *handler.ClubHandler
	RepairHandler         *handler.RepairHandler
	HealthHandler         *handler.HealthHandler

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter

	// JWTManager enables bearer-token auth. Nil trusts the X-User-ID/X-Club-ID/X-Role headers.
	JWTManager *auth.JWTManager
	Metrics    *metrics.Metrics
	// MetricsHandler serves /metrics. Defaults to the global Prometheus registry.
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.JWTManager, cfg.Metrics))

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
		}

		// Offers
		r.Route("/offers", func(r chi.Router) {
			r.Post("/", cfg.OfferHandler.Create)
			r.Get("/", cfg.OfferHandler.List)
			r.Get("/{id}", cfg.OfferHandler.Get)
			r.Post("/{id}/counter", cfg.OfferHandler.Counter)
			r.Post("/{id}/respond", cfg.OfferHandler.Respond)
			r.Post("/{id}/counter/respond", cfg.OfferHandler.RespondToCounter)
		})

		// Transfers
		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", cfg.TransferHandler.List)
			r.Get("/{id}", cfg.TransferHandler.Get)
		})

		// Wallets
		r.Route("/wallets/{id}", func(r chi.Router) {
			r.Get("/", cfg.WalletHandler.Get)
			r.Get("/transactions", cfg.WalletHandler.Transactions)
			r.Get("/transactions.csv", cfg.WalletHandler.ExportCSV)
			r.Get("/reconcile", cfg.ReconciliationHandler.Account)

			r.With(middleware.RequireAdmin).Post("/credit", cfg.WalletHandler.Credit)
			r.With(middleware.RequireAdmin).Post("/debit", cfg.WalletHandler.Debit)
			r.With(middleware.RequireAdmin).Post("/adjust", cfg.WalletHandler.Adjust)
		})

		// Market window
		r.Get("/market", cfg.MarketHandler.Get)
		r.With(middleware.RequireAdmin).Put("/market", cfg.MarketHandler.Set)

		// Clubs and players
		r.Get("/clubs/{id}", cfg.ClubHandler.GetClub)
		r.Get("/clubs/{id}/players", cfg.ClubHandler.ListPlayers)
		r.Get("/players/{id}", cfg.ClubHandler.GetPlayer)

		// Administration
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Post("/clubs", cfg.ClubHandler.CreateClub)
			r.Post("/players", cfg.ClubHandler.CreatePlayer)
			r.Put("/players/{id}/listing", cfg.ClubHandler.SetListing)

			r.Route("/rules", func(r chi.Router) {
				r.Post("/", cfg.RuleHandler.Create)
				r.Get("/", cfg.RuleHandler.List)
				r.Put("/{id}/active", cfg.RuleHandler.SetActive)
				r.Post("/fire", cfg.RuleHandler.Fire)
			})

			r.Post("/repair/offers", cfg.RepairHandler.RelinkOffers)
			r.Get("/reconcile", cfg.ReconciliationHandler.Report)
		})
	})

	return r
}
