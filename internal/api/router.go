package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kirito3009/ad-time-cash/internal/api/handlers"
	"github.com/kirito3009/ad-time-cash/internal/api/middleware"
	"github.com/kirito3009/ad-time-cash/internal/config"
	"github.com/kirito3009/ad-time-cash/internal/ledger"
	"github.com/kirito3009/ad-time-cash/internal/ratelimit"
	"github.com/kirito3009/ad-time-cash/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Dependencies holds everything the router needs.
type Dependencies struct {
	DB          *store.DB
	Ledger      *ledger.Reconciler
	Auth        *middleware.Authenticator
	AdminIPs    *middleware.IPAllowlist
	Limiter     ratelimit.Limiter
	CORSOrigins []string
}

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	// Middleware stack (order matters)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogging)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.CORS(deps.CORSOrigins))
	r.Use(middleware.LimitBody(config.MaxRequestBodySize))

	slog.Info("router initialized",
		"middleware", []string{"realIP", "requestLogging", "recoverer", "secureHeaders", "cors", "limitBody"},
	)

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Get("/health", handlers.HealthHandler(deps.DB, Version))
		r.Get("/ads", handlers.ListActiveAds(deps.DB))
		r.Get("/settings/public", handlers.GetPublicSettings(deps.Ledger))
		r.Get("/placements/{slot}", handlers.GetPlacement(deps.Ledger))

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.Middleware)
			if deps.Limiter != nil {
				r.Use(ratelimit.Middleware(deps.Limiter, middleware.UserKey))
			}

			r.Get("/me", handlers.GetMe(deps.Ledger))
			r.Post("/watch-events", handlers.SubmitWatchEvent(deps.Ledger))
			r.Get("/watch-events", handlers.ListWatchEvents(deps.Ledger))
			r.Get("/wallet", handlers.GetWallet(deps.Ledger))
			r.Get("/streak", handlers.GetStreak(deps.Ledger))
			r.Post("/withdrawals", handlers.RequestWithdrawal(deps.Ledger))
			r.Get("/withdrawals", handlers.ListMyWithdrawals(deps.Ledger))

			// Admin
			r.Route("/admin", func(r chi.Router) {
				if deps.AdminIPs != nil {
					r.Use(deps.AdminIPs.Middleware)
				}
				r.Use(middleware.RequireAdmin(deps.Ledger))

				r.Route("/ads", func(r chi.Router) {
					r.Get("/", handlers.ListAllAds(deps.DB))
					r.Post("/", handlers.CreateAd(deps.Ledger))
					r.Put("/{id}", handlers.UpdateAd(deps.Ledger))
					r.Delete("/{id}", handlers.DeleteAd(deps.Ledger))
					r.Put("/{id}/active", handlers.SetAdActive(deps.Ledger))
				})

				r.Route("/withdrawals", func(r chi.Router) {
					r.Get("/", handlers.ListWithdrawals(deps.DB))
					r.Put("/{id}/status", handlers.SetWithdrawalStatus(deps.Ledger))
					r.Post("/{id}/decrypt", handlers.DecryptPaymentDetails(deps.Ledger))
				})

				r.Get("/settings", handlers.GetSettings(deps.DB))
				r.Put("/settings", handlers.UpdateSettings(deps.Ledger, deps.DB))

				r.Get("/users", handlers.ListUsers(deps.DB))
				r.Post("/users/{id}/rebuild", handlers.RebuildUser(deps.Ledger))
				r.Get("/audit", handlers.ListAudit(deps.DB))
				r.Get("/errors", handlers.ListErrors(deps.DB))
			})
		})
	})

	return r
}
