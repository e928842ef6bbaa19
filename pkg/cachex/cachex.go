// Package cachex defines the shared TTL cache used by the authorization
// engine. Cache contents are advisory: every consumer must treat a miss or a
// cache failure as "fall through to the canonical store", never as an error.
package cachex

import (
	"context"
	"net/http"
	"time"

	"github.com/vantak/gatehouse/pkg/errx"
)

// Store is a key-value store with per-entry TTL. Writes are last-write-wins.
type Store interface {
	// Get returns the value for key. The boolean is false on a miss; an
	// error is returned only when the store itself is unreachable.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes a value with the given TTL, replacing any existing entry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}

var ErrRegistry = errx.NewRegistry("CACHE")

var (
	CodeUnavailable = ErrRegistry.Register("UNAVAILABLE", errx.TypeUnavailable, http.StatusServiceUnavailable, "Cache store unreachable")
)
