package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aryan0dhankhar/admindash/internal/domain"
	"github.com/aryan0dhankhar/admindash/internal/observability/metrics"
	"github.com/aryan0dhankhar/admindash/internal/security/audit"
	"github.com/aryan0dhankhar/admindash/internal/security/middleware"
	"github.com/aryan0dhankhar/admindash/internal/security/ratelimit"
	"github.com/aryan0dhankhar/admindash/internal/service"
)

// SessionService is the credential side of the API
type SessionService interface {
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
	Me(ctx context.Context, userID string) (*domain.PublicUser, error)
}

// LoginThrottle bounds login attempts per client address and username.
// A zero Max disables it.
type LoginThrottle struct {
	Limiter *ratelimit.Limiter
	Max     int
	Window  time.Duration
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	sessions SessionService
	throttle LoginThrottle
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions SessionService, throttle LoginThrottle, auditLog *audit.Logger, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}

	return &AuthHandler{
		sessions: sessions,
		throttle: throttle,
		audit:    auditLog,
		logger:   logger,
	}
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("failed to decode login request", slog.String("error", err.Error()))
		middleware.WriteError(w, err)
		return
	}

	if h.throttle.Limiter != nil && h.throttle.Max > 0 {
		key := middleware.ClientIP(r) + "|" + req.Username
		if !h.throttle.Limiter.AllowStrict(key, h.throttle.Max, h.throttle.Window) {
			metrics.ObserveLogin("rate_limited")
			h.audit.LogLogin(r.Context(), req.Username, "rate_limited")
			middleware.WriteMessage(w, http.StatusTooManyRequests, "Too many login attempts, try again later")
			return
		}
	}

	result, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.audit.LogLogin(r.Context(), req.Username, "failure")
		middleware.WriteError(w, err)
		return
	}

	h.audit.LogLogin(r.Context(), req.Username, "success")
	middleware.WriteJSON(w, http.StatusOK, result)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		middleware.WriteError(w, domain.MissingCredential())
		return
	}

	user, err := h.sessions.Me(r.Context(), claims.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, user)
}
