package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/admindash/internal/security"
	"github.com/aryan0dhankhar/admindash/internal/security/audit"
	"github.com/aryan0dhankhar/admindash/internal/security/middleware"
	"github.com/aryan0dhankhar/admindash/internal/security/ratelimit"
)

// RouterConfig wires handlers to routes
type RouterConfig struct {
	Auth      *AuthHandler
	Users     *UsersHandler
	Dashboard *DashboardHandler
	Health    *HealthHandler

	Validator  middleware.Authenticator
	APILimiter *ratelimit.Limiter
	Audit      *audit.Logger
	// Authz, when set, checks view_users/view_dashboard on reads and
	// manage_users on user mutations
	Authz *security.AuthorizationService
	// Metrics serves /metrics when set
	Metrics http.Handler

	Logger *slog.Logger
}

// NewRouter registers every API route
func NewRouter(cfg RouterConfig) *http.ServeMux {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	auditLog := cfg.Audit
	if auditLog == nil {
		auditLog = audit.NewLogger(log)
	}

	session := middleware.SessionValidator(cfg.Validator, log)
	limit := func(h http.Handler) http.Handler { return h }
	if cfg.APILimiter != nil {
		limit = middleware.RateLimitMiddleware(cfg.APILimiter, log)
	}
	protected := func(h http.HandlerFunc) http.Handler {
		return session(limit(h))
	}
	viewing := func(perm security.Permission, h http.Handler) http.Handler {
		if cfg.Authz != nil {
			h = middleware.RequirePermission(cfg.Authz, perm, auditLog)(h)
		}
		return session(limit(h))
	}
	mutating := func(h http.HandlerFunc) http.Handler {
		var next http.Handler = h
		if cfg.Authz != nil {
			next = middleware.RequirePermission(cfg.Authz, security.PermManageUsers, auditLog)(next)
		}
		return session(limit(middleware.AuditMiddleware(auditLog)(next)))
	}

	mux := http.NewServeMux()

	mux.Handle("POST /api/auth/login", limit(http.HandlerFunc(cfg.Auth.Login)))
	mux.Handle("GET /api/auth/me", protected(cfg.Auth.Me))

	mux.Handle("GET /api/users", viewing(security.PermViewUsers, http.HandlerFunc(cfg.Users.List)))
	mux.Handle("GET /api/users/{id}", viewing(security.PermViewUsers, http.HandlerFunc(cfg.Users.Get)))
	mux.Handle("POST /api/users", mutating(cfg.Users.Create))
	mux.Handle("PUT /api/users/{id}", mutating(cfg.Users.Update))
	mux.Handle("DELETE /api/users/{id}", mutating(cfg.Users.Delete))

	mux.Handle("GET /api/dashboard/stats", viewing(security.PermViewDashboard, cfg.Dashboard))

	mux.HandleFunc("GET /api/health", cfg.Health.API)
	mux.HandleFunc("GET /healthz", cfg.Health.Health)
	mux.HandleFunc("GET /readyz", cfg.Health.Ready)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return mux
}
