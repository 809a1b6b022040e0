package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/atspro/atspro/internal/cache"
	"github.com/atspro/atspro/internal/handler"
	"github.com/atspro/atspro/internal/metrics"
	"github.com/atspro/atspro/internal/middleware"
	"github.com/atspro/atspro/internal/service"
	"github.com/atspro/atspro/internal/session"
)

// RouterConfig carries the HTTP-facing settings.
type RouterConfig struct {
	IsDevelopment  bool
	AllowedOrigins []string
	MaxUploadSize  int64

	AnalysisLimit cache.Limit
	LoginLimit    cache.Limit
}

// Deps holds everything the router wires together. Limiter, Cache and
// Timeline may be nil when Redis is not configured. MetricsHandler, when
// set, replaces the in-memory /metrics exposition.
type Deps struct {
	Config RouterConfig
	Logger *slog.Logger

	Book             *service.ReportBook
	Auth             *service.AuthService
	Sessions         *session.Registry
	Directory        handler.AdminDirectory
	Store            handler.HealthChecker
	Cache            handler.HealthChecker
	Limiter          middleware.Limiter
	Metrics          metrics.Snapshotter
	MetricsHandler   http.Handler
	HTTPObserver     middleware.HTTPObserver
	Timeline         handler.TimelineReader
	RemoteConfigured bool
}

// NewRouter builds the chi router with every route and middleware.
func NewRouter(d Deps) *chi.Mux {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := handler.New()
	healthHandler := handler.NewHealthHandler(d.Store, d.Cache, d.RemoteConfigured)
	authHandler := handler.NewAuthHandler(d.Auth, d.Sessions, logger)
	analysisHandler := handler.NewAnalysisHandler(d.Book, d.Config.MaxUploadSize, logger)
	reportHandler := handler.NewReportHandler(d.Book, logger)
	adminHandler := handler.NewAdminHandler(d.Book, d.Directory, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.SecureHeaders(d.Config.IsDevelopment))
	r.Use(middleware.CORS(middleware.CORSPolicy{
		Origins:        d.Config.AllowedOrigins,
		AllowLocalhost: d.Config.IsDevelopment,
	}))
	r.Use(middleware.MaxBodySize(middleware.BodyLimit(d.Config.MaxUploadSize)))
	if d.HTTPObserver != nil {
		r.Use(middleware.Metrics(d.HTTPObserver))
	}

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	} else {
		r.Get("/metrics", handler.NewMetricsHandler(d.Metrics).Metrics)
	}
	r.Get("/", h.Hello)

	authCfg := middleware.AuthConfig{Logger: logger, Sessions: d.Sessions}
	rateCfg := middleware.RateLimitConfig{Logger: logger, Limiter: d.Limiter}
	jsonOnly := middleware.RequireContentType(middleware.MediaJSON)

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.With(jsonOnly).Post("/auth/register", authHandler.Register)
		r.With(
			middleware.RateLimitIP(rateCfg, cache.ScopeLogin, d.Config.LoginLimit),
			jsonOnly,
		).Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)
			r.With(jsonOnly).Patch("/auth/me", authHandler.UpdateMe)

			r.With(
				middleware.RateLimitUser(rateCfg, cache.ScopeAnalysis, d.Config.AnalysisLimit),
				middleware.RequireContentType(middleware.MediaJSON, middleware.MediaMultipart),
			).Post("/analyses", analysisHandler.Create)

			r.Get("/reports", reportHandler.List)
			r.Get("/reports/{id}", reportHandler.Get)
			r.Get("/reports/{id}/export", reportHandler.Export)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin())

				r.Get("/reports", adminHandler.Leaderboard)
				r.With(jsonOnly).Patch("/reports/{id}/status", adminHandler.UpdateStatus)
				r.Get("/jobs", adminHandler.Jobs)
				r.Get("/users", adminHandler.Users)
				r.Get("/stats", adminHandler.Stats)

				if d.Timeline != nil {
					timelineHandler := handler.NewTimelineHandler(d.Book, d.Timeline, logger)
					r.Get("/reports/{id}/timeline", timelineHandler.Get)
				}
			})
		})
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
