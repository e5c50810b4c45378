// Package auth defines the API-key identity lookup used by the HTTP layer.
// Checkout itself never sees credentials, only the resolved user ID.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active key matches a hash.
var ErrKeyNotFound = errors.New("api key not found")

// APIKeyInfo is a validated API key and the user it belongs to.
type APIKeyInfo struct {
	ID      string
	UserID  string
	KeyHash string
	Name    string
}

// Repository provides lookup of active API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
