package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("disk full")

	cases := []struct {
		err     error
		kind    error
		message string
	}{
		{Conflict("Email already exists"), ErrValidationConflict, "Email already exists"},
		{NotFound("User not found"), ErrNotFound, "User not found"},
		{InvalidInput("Email is required"), ErrInvalidInput, "Email is required"},
		{Unauthorized("Invalid credentials"), ErrUnauthorized, "Invalid credentials"},
		{Forbidden("Insufficient permissions"), ErrForbidden, "Insufficient permissions"},
		{StorageFailure(cause), ErrStorageFailure, "Storage unavailable"},
		{MissingCredential(), ErrMissingCredential, "Access token required"},
		{InvalidCredential(cause), ErrInvalidCredential, "Invalid token"},
		{ExpiredCredential(cause), ErrExpiredCredential, "Token expired"},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, tc.err, tc.kind)
		assert.Equal(t, tc.message, PublicMessage(tc.err, ""))
	}
}

func TestExpiredCredentialIsInvalid(t *testing.T) {
	err := ExpiredCredential(errors.New("exp"))
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.ErrorIs(t, InvalidCredential(nil), ErrInvalidCredential)
	assert.NotErrorIs(t, InvalidCredential(nil), ErrExpiredCredential)
}

func TestStorageFailureKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("create: %w", StorageFailure(cause))

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.Equal(t, "Storage unavailable", PublicMessage(err, "x"))
	assert.Contains(t, err.Error(), "disk full")
}

func TestPublicMessageFallback(t *testing.T) {
	assert.Equal(t, "Internal server error", PublicMessage(errors.New("boom"), "Internal server error"))
}
