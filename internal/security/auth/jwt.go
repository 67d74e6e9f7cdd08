package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aryan0dhankhar/admindash/internal/domain"
)

// DefaultTokenTTL is the validity window of an issued session token
const DefaultTokenTTL = 24 * time.Hour

type Claims struct {
	UserID   string      `json:"id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option customises a TokenManager
type Option func(*TokenManager)

// WithClock replaces the time source used for issuing and verifying
func WithClock(now func() time.Time) Option {
	return func(tm *TokenManager) { tm.now = now }
}

// WithTTL overrides DefaultTokenTTL
func WithTTL(ttl time.Duration) Option {
	return func(tm *TokenManager) {
		if ttl > 0 {
			tm.ttl = ttl
		}
	}
}

func NewTokenManager(secret, issuer string, opts ...Option) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "admindash"
	}
	tm := &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// TTL returns the validity window applied by Issue
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue signs the identity claims with a fixed expiration
func (tm *TokenManager) Issue(userID, username string, role domain.Role) (string, time.Time, error) {
	if userID == "" || username == "" {
		return "", time.Time{}, fmt.Errorf("user id and username required")
	}
	now := tm.now()
	// exp is encoded in whole seconds; round up so the window is never short
	expiry := now.Add(tm.ttl)
	if t := expiry.Truncate(time.Second); !t.Equal(expiry) {
		expiry = t.Add(time.Second)
	}
	exp := jwt.NewNumericDate(expiry)
	claims := Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp.Time, nil
}

// ParseAndVerify checks the signature and expiry of token and returns its claims.
// A token is still valid at the exact second of its expiration.
// Failures are domain.ErrInvalidCredential or domain.ErrExpiredCredential.
func (tm *TokenManager) ParseAndVerify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// expiry and issuer are checked below so that now == exp is accepted
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, domain.InvalidCredential(err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, domain.InvalidCredential(fmt.Errorf("invalid token claims"))
	}
	if claims.Issuer != tm.issuer {
		return nil, domain.InvalidCredential(fmt.Errorf("%w: %q", jwt.ErrTokenInvalidIssuer, claims.Issuer))
	}
	if claims.ExpiresAt == nil {
		return nil, domain.InvalidCredential(jwt.ErrTokenRequiredClaimMissing)
	}
	if tm.now().After(claims.ExpiresAt.Time) {
		return nil, domain.ExpiredCredential(jwt.ErrTokenExpired)
	}
	return claims, nil
}

// ExtractToken pulls the token out of an "Authorization: Bearer <token>" header value
func ExtractToken(authHeader string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}
