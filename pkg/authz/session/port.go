package session

import (
	"context"
	"time"

	"github.com/vantak/gatehouse/pkg/kernel"
)

// TokenRepository is the persisted token store. Revoking an already-revoked
// token is a no-op; a single authoritative revoked flag per row wins any
// race with expiry.
type TokenRepository interface {
	// FindByAccessToken returns the record for a raw access token, or an
	// errx NotFound error when no record exists.
	FindByAccessToken(ctx context.Context, accessToken string) (*Token, error)

	// FindActiveByUser returns the user's non-revoked tokens with expiry
	// after now, ordered by creation time ascending.
	FindActiveByUser(ctx context.Context, userID kernel.UserID, now time.Time) ([]*Token, error)

	// Revoke flips the revoked flag. Idempotent.
	Revoke(ctx context.Context, accessToken string) error

	// UpdateExpiry moves a token's expiry (sliding session extension).
	UpdateExpiry(ctx context.Context, accessToken string, expiresAt time.Time) error
}

// UserRepository is the partial user store needed for two-factor grace
// accounting.
type UserRepository interface {
	FindByID(ctx context.Context, id kernel.UserID) (*User, error)

	// IncrementLoginCount bumps the grace-login counter by one.
	IncrementLoginCount(ctx context.Context, id kernel.UserID) error
}
