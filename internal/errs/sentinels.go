// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Common sentinels across session/gateway/repository layers.
var (
	// ErrNotFound indicates the requested entity or stored key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates rejected credentials or an invalidated session (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the server refused the call for the current role (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrRequestFailed is the catch-all for other >= 400 responses.
	ErrRequestFailed = errors.New("request failed")

	// ErrNoSession indicates an operation that needs a token ran without one.
	ErrNoSession = errors.New("no session")

	// ErrStaleResponse indicates a response arrived after the session it belonged to was torn down.
	ErrStaleResponse = errors.New("stale response")

	// ErrUnsupportedLanguage indicates a language outside the shipped dictionaries.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrAlreadyExists indicates a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")
)

// APIError is returned for every response with status >= 400.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// Unwrap maps the status code onto a sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrAlreadyExists
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrRequestFailed
	}
}
