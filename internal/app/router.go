package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/auth"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/authz"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/badges"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/chapters"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/events"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/observability"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/ratelimit"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/security"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/users"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Resolver       *auth.Resolver
	Engine         *authz.Engine
	Limiter        *ratelimit.Limiter
	Policies       Policies
	Watcher        *security.Watcher
	Metrics        *observability.Metrics

	AuthHandler     *auth.Handler
	UsersHandler    *users.Handler
	ChaptersHandler *chapters.Handler
	EventsHandler   *events.Handler
	BadgesHandler   *badges.Handler
	JobsHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with AWIBI defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	if params.Limiter != nil && params.Metrics != nil {
		params.Limiter.OnReject = params.Metrics.ObserveRateLimited
	}

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Watcher:        params.Watcher,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if params.Config != nil && params.Config.IsDevelopment() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	limit := func(p ratelimit.Policy) func(http.Handler) http.Handler {
		if params.Limiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return params.Limiter.Middleware(p)
	}
	authn := params.Resolver.RequireAuth
	// Public reads resolve credentials when present so handlers can
	// personalize, but never require them.
	optional := params.Resolver.OptionalAuth

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(limit(params.Policies.API))

		api.Route("/auth", func(ar chi.Router) {
			params.AuthHandler.MountRoutes(ar, auth.RouteLimits{
				Auth:              limit(params.Policies.Auth),
				PasswordReset:     limit(params.Policies.PasswordReset),
				EmailVerification: limit(params.Policies.EmailVerification),
			})
			ar.With(authn).Post("/refresh", params.AuthHandler.HandleRefresh)
		})

		api.Route("/users", func(ur chi.Router) {
			ur.Use(authn)
			params.UsersHandler.MountRoutes(ur)
		})

		api.Route("/chapters", func(cr chi.Router) {
			cr.Group(func(pub chi.Router) {
				pub.Use(limit(params.Policies.General), optional)
				params.ChaptersHandler.MountPublicRoutes(pub)
			})
			cr.Group(func(priv chi.Router) {
				priv.Use(authn)
				params.ChaptersHandler.MountProtectedRoutes(priv)
			})
			params.EventsHandler.MountChapterRoutes(
				cr.With(limit(params.Policies.General), optional),
				cr.With(authn),
			)
		})

		api.Route("/events", func(er chi.Router) {
			er.Group(func(pub chi.Router) {
				pub.Use(limit(params.Policies.General), optional)
				params.EventsHandler.MountPublicRoutes(pub)
			})
			er.Group(func(priv chi.Router) {
				priv.Use(authn)
				params.EventsHandler.MountProtectedRoutes(priv)
			})
		})

		if params.JobsHandler != nil {
			api.Route("/jobs", func(jr chi.Router) {
				jr.Use(authn, params.Engine.RequireMinRole(authz.RoleAdmin))
				params.JobsHandler.MountRoutes(jr)
			})
		}

		api.Route("/badges", func(br chi.Router) {
			br.Group(func(pub chi.Router) {
				pub.Use(limit(params.Policies.General), optional)
				params.BadgesHandler.MountPublicRoutes(pub)
			})
			br.Group(func(priv chi.Router) {
				priv.Use(authn)
				params.BadgesHandler.MountProtectedRoutes(priv)
			})
		})
	})

	return r
}
