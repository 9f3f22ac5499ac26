package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/iho/marketledger/internal/adapter/http/handler"
	"github.com/iho/marketledger/internal/adapter/http/middleware"
	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/infrastructure/metrics"
	"github.com/iho/marketledger/internal/usecase"
)

// APIPrefix is the mount point of the billing API.
const APIPrefix = "/api/v1/billing"

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	BillingHandler      *handler.BillingHandler
	WithdrawalHandler   *handler.WithdrawalHandler
	DistributionHandler *handler.DistributionHandler
	AdminHandler        *handler.AdminHandler
	HealthHandler       *handler.HealthHandler

	// Authenticator puts the caller's principal into the request context.
	// It defaults to middleware.HeaderIdentity.
	Authenticator func(http.Handler) http.Handler

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter

	Logger             zerolog.Logger
	Metrics            *metrics.Metrics
	HTTPMetrics        *middleware.HTTPMetrics
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Authenticator == nil {
		cfg.Authenticator = middleware.HeaderIdentity(cfg.Metrics)
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.IdempotencyKeyHeader, chimiddleware.RequestIDHeader},
		ExposedHeaders:   []string{chimiddleware.RequestIDHeader, middleware.ReplayHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Wrap)
	}
	r.Use(middleware.RequestMeta)

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/commission-config", cfg.BillingHandler.CommissionConfig)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticator)
			r.Use(middleware.CapturePrincipal)
			if cfg.IdempotencyStore != nil {
				r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
			}

			r.Get("/my-account", cfg.BillingHandler.MyAccount)
			r.Get("/my-stats", cfg.BillingHandler.MyStats)
			r.Get("/my-transactions", cfg.BillingHandler.MyTransactions)
			r.Get("/earnings-report", cfg.BillingHandler.EarningsReport)

			r.Route("/withdrawals", func(r chi.Router) {
				r.Post("/request", cfg.WithdrawalHandler.Request)
				r.Get("/my-requests", cfg.WithdrawalHandler.MyRequests)
				r.Get("/{id}", cfg.WithdrawalHandler.Get)
				r.Post("/{id}/cancel", cfg.WithdrawalHandler.Cancel)
			})

			// Sales system
			r.Group(func(r chi.Router) {
				r.Use(middleware.Require(domain.Role.CanPostSales, cfg.Metrics))
				r.Post("/distributions", cfg.DistributionHandler.Distribute)
				r.Post("/refunds", cfg.DistributionHandler.Refund)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.Require(domain.Role.CanAdminister, cfg.Metrics))

				r.Get("/overview", cfg.AdminHandler.Overview)

				r.Get("/accounts/{principalID}", cfg.AdminHandler.GetAccount)
				r.Post("/accounts/{principalID}/suspend", cfg.AdminHandler.SuspendAccount)
				r.Post("/accounts/{principalID}/reactivate", cfg.AdminHandler.ReactivateAccount)

				r.Get("/withdrawals", cfg.AdminHandler.ListWithdrawals)
				r.Get("/withdrawals/{id}", cfg.AdminHandler.GetWithdrawal)
				r.Post("/withdrawals/{id}/process", cfg.AdminHandler.ProcessWithdrawal)
				r.Post("/withdrawals/{id}/processing", cfg.AdminHandler.MarkProcessing)
				r.Post("/withdrawals/{id}/complete", cfg.AdminHandler.CompleteWithdrawal)

				r.Post("/adjust-balance/{principalID}", cfg.AdminHandler.AdjustBalance)

				r.Get("/reconciliation", cfg.AdminHandler.ReconciliationReport)
				r.Get("/reconciliation/{principalID}", cfg.AdminHandler.ReconcileAccount)
				r.Get("/audit-logs", cfg.AdminHandler.AuditLogs)
			})
		})
	})

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
