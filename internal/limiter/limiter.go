// Package limiter throttles repeated login attempts for the same account
// before they reach the backend.
package limiter

import (
	"context"
	"crypto/sha256"
	"strings"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, key []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, key []byte) error
	// Failure records a rejected attempt; may place a temporary block.
	Failure(ctx context.Context, key []byte) (bool, time.Duration, error)
}

// HashKey returns a stable hash for an account identifier so raw emails are
// never stored.
func HashKey(email string) []byte {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return h[:]
}
