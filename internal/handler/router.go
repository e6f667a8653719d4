package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aryan0dhankhar/orderme/internal/observability/metrics"
	"github.com/aryan0dhankhar/orderme/internal/security"
	"github.com/aryan0dhankhar/orderme/internal/security/audit"
	"github.com/aryan0dhankhar/orderme/internal/security/middleware"
	"github.com/aryan0dhankhar/orderme/internal/service"
)

// RouterConfig carries everything the HTTP surface depends on.
// FormTokenEndpoint mounts POST /auth/token.
type RouterConfig struct {
	AuthService       *service.AuthService
	Resolver          middleware.Resolver
	Audit             *audit.Logger
	Health            *HealthHandler
	AllowedOrigins    []string
	FormTokenEndpoint bool
	Logger            *slog.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	health := cfg.Health
	if health == nil {
		health = NewHealthHandler(nil, logger)
	}
	authHandler := NewAuthHandler(cfg.AuthService, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(metrics.HTTPMetricsMiddleware)
	r.Use(middleware.LimitBody(middleware.MaxBodyBytes))

	r.Get("/", Welcome)
	r.Get("/healthz", health.Health)
	r.Get("/readyz", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.ValidateJSONContentType(logger))
			r.Post("/signup", authHandler.Signup)
			r.Post("/signup/", authHandler.Signup)
			r.Post("/login", authHandler.Login)
		})
		if cfg.FormTokenEndpoint {
			r.Post("/token", authHandler.Token)
		}
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(middleware.Authenticate(cfg.Resolver, cfg.Audit, logger))

		r.Get("/me", Me)
		r.With(middleware.RequireRoles(security.RequireAdmin, cfg.Audit)).
			Get("/admin", AccessGranted("You have admin access"))
		r.With(middleware.RequireRoles(security.RequireCustomer, cfg.Audit)).
			Get("/customer", AccessGranted("You have customer access"))
	})

	return r
}
