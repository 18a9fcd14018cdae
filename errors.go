package kilncat

import "errors"

var (
	// ErrNotFound is returned when a resource does not exist or is hidden
	// from the caller by the ownership guard
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden is returned when a principal is not allowed to act on a resource
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized is returned when signed-URL credentials are missing or wrong
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidToken is returned for malformed tokens or bad signatures
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for tokens that are cryptographically valid but expired
	ErrExpiredToken = errors.New("expired token")
	// ErrAuthUnavailable is returned when the token verification dependency
	// itself cannot be reached. Never used for bad credentials.
	ErrAuthUnavailable = errors.New("verification service unavailable")
	// ErrUnavailable is returned when a storage dependency failed and the
	// operation may be retried
	ErrUnavailable = errors.New("service unavailable")
	// ErrConflict is returned when a write collides with existing state
	ErrConflict = errors.New("conflict")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
)
