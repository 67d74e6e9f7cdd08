package auth

import (
	"strings"

	"github.com/aryan0dhankhar/admindash/internal/domain"
)

// Verifier is the token check the validator delegates to
type Verifier interface {
	ParseAndVerify(token string) (*Claims, error)
}

// Validator turns an Authorization header value into an authenticated identity.
// It keeps no state between calls.
type Validator struct {
	verifier Verifier
}

func NewValidator(v Verifier) *Validator {
	return &Validator{verifier: v}
}

// Authenticate returns the verified claims, or one of
// domain.ErrMissingCredential, domain.ErrInvalidCredential, domain.ErrExpiredCredential.
func (v *Validator) Authenticate(authHeader string) (*Claims, error) {
	trimmed := strings.TrimSpace(authHeader)
	if trimmed == "" || strings.EqualFold(trimmed, "Bearer") {
		return nil, domain.MissingCredential()
	}
	token, err := ExtractToken(authHeader)
	if err != nil {
		return nil, domain.InvalidCredential(err)
	}
	return v.verifier.ParseAndVerify(token)
}
