package socialhub_errors

import "errors"

// Common errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")
)

// Realtime layer errors
var (
	// ErrAuthRejected means the handshake credential was missing, malformed,
	// expired or carried a bad signature.
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrValidation is returned for malformed event payloads.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence wraps database write failures on the critical path.
	ErrPersistence = errors.New("persistence failed")
)

