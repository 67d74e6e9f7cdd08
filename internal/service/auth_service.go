package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/admindash/internal/domain"
	"github.com/aryan0dhankhar/admindash/internal/observability/metrics"
)

// UserLookup is the part of the directory the credential service needs
type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.PublicUser, error)
}

// PasswordVerifier checks a plaintext against a stored hash
type PasswordVerifier interface {
	Verify(plaintext, hash string) bool
}

// TokenIssuer signs session tokens
type TokenIssuer interface {
	Issue(userID, username string, role domain.Role) (string, time.Time, error)
}

// AuthService handles authentication operations
type AuthService struct {
	users         UserLookup
	passwords     PasswordVerifier
	tokens        TokenIssuer
	blockInactive bool
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
// With blockInactive set, accounts whose status is not active cannot log in.
func NewAuthService(
	users UserLookup,
	passwords PasswordVerifier,
	tokens TokenIssuer,
	blockInactive bool,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		users:         users,
		passwords:     passwords,
		tokens:        tokens,
		blockInactive: blockInactive,
		logger:        logger,
	}
}

// SessionUser is the public summary returned with a token
type SessionUser struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
}

// LoginResult represents login response
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      SessionUser `json:"user"`
}

// Login authenticates a user and returns a session token.
// Every credential problem yields the same Unauthorized error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		metrics.ObserveLogin("failure")
		return nil, errInvalidCredentials()
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// burn a comparison so a missing user costs the same as a wrong password
			s.passwords.Verify(password, "")
			s.logger.Info("login attempt with unknown username", slog.String("username", username))
			metrics.ObserveLogin("failure")
			return nil, errInvalidCredentials()
		}
		metrics.ObserveLogin("error")
		return nil, err
	}

	if !s.passwords.Verify(password, user.PasswordHash) {
		s.logger.Info("login failed with wrong password", slog.String("username", username))
		metrics.ObserveLogin("failure")
		return nil, errInvalidCredentials()
	}

	if s.blockInactive && user.Status != domain.StatusActive {
		s.logger.Info("login refused for inactive account", slog.String("user_id", user.ID))
		metrics.ObserveLogin("failure")
		return nil, errInvalidCredentials()
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		metrics.ObserveLogin("error")
		return nil, err
	}

	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	metrics.ObserveLogin("success")

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User: SessionUser{
			ID:       user.ID,
			Username: user.Username,
			Name:     user.Name,
			Role:     user.Role,
		},
	}, nil
}

// Me resolves the account behind an authenticated session
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.PublicUser, error) {
	return s.users.GetByID(ctx, userID)
}

func errInvalidCredentials() error {
	return domain.Unauthorized("Invalid credentials")
}
