package domain

import (
	"errors"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidationConflict = errors.New("validation conflict")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrMissingCredential  = errors.New("missing credential")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrExpiredCredential  = errors.New("expired credential")
	ErrStorageFailure     = errors.New("storage failure")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrStaleSnapshot is returned by UserStore.Save when another writer
	// persisted a newer version after the caller loaded its snapshot.
	ErrStaleSnapshot = errors.New("stale snapshot")
)

// Error is a domain failure with a short message that is safe to show callers
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func Conflict(message string) error {
	return &Error{Kind: ErrValidationConflict, Message: message}
}

func NotFound(message string) error {
	return &Error{Kind: ErrNotFound, Message: message}
}

func InvalidInput(message string) error {
	return &Error{Kind: ErrInvalidInput, Message: message}
}

func Unauthorized(message string) error {
	return &Error{Kind: ErrUnauthorized, Message: message}
}

func Forbidden(message string) error {
	return &Error{Kind: ErrForbidden, Message: message}
}

// StorageFailure wraps a persistence error. The cause is kept for logs only.
func StorageFailure(err error) error {
	return &Error{Kind: ErrStorageFailure, Message: "Storage unavailable", Err: err}
}

// MissingCredential, InvalidCredential and ExpiredCredential describe session token problems.
// An expired credential also matches ErrInvalidCredential.
func MissingCredential() error {
	return &Error{Kind: ErrMissingCredential, Message: "Access token required"}
}

func InvalidCredential(err error) error {
	return &Error{Kind: ErrInvalidCredential, Message: "Invalid token", Err: err}
}

func ExpiredCredential(err error) error {
	return &Error{Kind: ErrExpiredCredential, Message: "Token expired", Err: errors.Join(ErrInvalidCredential, err)}
}

// PublicMessage returns the caller-facing message of err, or fallback when
// err carries none.
func PublicMessage(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return fallback
}
