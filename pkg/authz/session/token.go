package session

import (
	"time"

	"github.com/vantak/gatehouse/pkg/kernel"
)

// Token is the persisted access-token record. Records are never deleted;
// revocation flips the single authoritative flag and the row is retained for
// audit.
type Token struct {
	AccessToken string          `db:"access_token" json:"access_token"`
	UserID      kernel.UserID   `db:"user_id" json:"user_id"`
	ClientID    kernel.ClientID `db:"client_id" json:"client_id"`
	TenantID    kernel.TenantID `db:"tenant_id" json:"tenant_id"`
	Scopes      []string        `db:"scopes" json:"scopes"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time       `db:"expires_at" json:"expires_at"`
	Revoked     bool            `db:"revoked" json:"revoked"`
}

// IsMachine reports whether this is a machine-issued token: no owning user,
// bound to exactly one tenant via its client.
func (t *Token) IsMachine() bool {
	return t.UserID.IsEmpty() && !t.ClientID.IsEmpty()
}

// IsExpired checks the record's own expiry against now.
func (t *Token) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Age returns how long ago the token was created.
func (t *Token) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// User is the partial user view the engine needs for two-factor grace
// accounting. The engine mutates it only to increment LoginCount.
type User struct {
	ID               kernel.UserID `db:"id" json:"id"`
	Email            string        `db:"email" json:"email"`
	TwoFactorEnabled bool          `db:"two_factor_enabled" json:"two_factor_enabled"`
	LoginCount       int           `db:"login_count" json:"login_count"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
}
