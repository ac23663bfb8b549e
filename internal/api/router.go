package api

import (
	"context"
	"net/http"
	"time"

	"github.com/alecgard/ekklesia/internal/auth"
	"github.com/alecgard/ekklesia/internal/metrics"
	"github.com/alecgard/ekklesia/internal/ratelimit"
	"github.com/alecgard/ekklesia/internal/role"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Pinger reports database reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Auth           *auth.Service
	Accounts       RoleUpdater
	Metrics        *metrics.Metrics
	Limiter        *ratelimit.Limiter
	DBPool         Pinger
	AllowedOrigins []string
	// TrustForwarded rewrites RemoteAddr from proxy headers so the
	// credential limiter keys on the original client.
	TrustForwarded bool
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	if deps.TrustForwarded {
		r.Use(chimw.RealIP)
	}
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(slogRequestLogger)
	r.Use(httpMetrics(deps.Metrics))

	authh := newAuthHandler(deps.Auth, deps.Metrics)
	accounts := newAccountsHandler(deps.Accounts)

	authenticate := auth.Authenticate(deps.Auth.Issuer(), func(reason string) {
		deps.Metrics.IncAuthFailure("verify", reason)
	})

	r.Get("/health", healthHandler(deps.DBPool))
	r.Get("/.well-known/ekklesia.json", WellKnownHandler)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.PrometheusHandler())
	}

	r.Route("/auth", func(ar chi.Router) {
		// Credential endpoints are throttled per client IP.
		ar.Group(func(cr chi.Router) {
			cr.Use(ratelimit.Middleware(deps.Limiter, deps.Metrics.IncRateLimitRejection))
			cr.Post("/register", authh.Register)
			cr.Post("/login", authh.Login)
		})

		ar.Group(func(sr chi.Router) {
			sr.Use(authenticate)
			sr.Get("/me", authh.Me)
			sr.Post("/logout", authh.Logout)
		})
	})

	r.Route("/api/v1", func(ar chi.Router) {
		ar.Use(authenticate)

		ar.With(auth.RequireRole(role.Membro)).Get("/roles", accounts.ListRoles)

		ar.Route("/admin", func(adm chi.Router) {
			adm.Use(auth.RequireRole(role.Admin))
			if deps.Metrics != nil {
				adm.Get("/metrics", deps.Metrics.Handler())
			}
			adm.Put("/accounts/{id}/role", accounts.UpdateRole)
		})
	})

	return r
}

func healthHandler(pool Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "degraded",
				"database": "unreachable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "ok",
			"database": "connected",
		})
	}
}
