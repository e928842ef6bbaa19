package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vantak/gatehouse/pkg/authz"
	"github.com/vantak/gatehouse/pkg/errx"
	"github.com/vantak/gatehouse/pkg/kernel"
)

// Claims are the verified bearer-token claims. The persisted token record
// remains authoritative for revocation and scopes; the claims only gate the
// cheap first step of validation.
type Claims struct {
	UserID    kernel.UserID
	ClientID  kernel.ClientID
	TenantID  kernel.TenantID
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type jwtClaims struct {
	UserID   string   `json:"user_id,omitempty"`
	ClientID string   `json:"client_id,omitempty"`
	TenantID string   `json:"tenant_id,omitempty"`
	Scopes   []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Verifier parses and verifies bearer tokens (HS256).
type Verifier struct {
	secretKey []byte
}

// NewVerifier creates a verifier over the shared signing key.
func NewVerifier(secretKey string) *Verifier {
	return &Verifier{secretKey: []byte(secretKey)}
}

// Verify parses the raw token, checks the signature and the token's own
// expiry. It distinguishes an expired token from an unverifiable one so the
// caller can return the right rejection reason.
func (v *Verifier) Verify(raw string) (*Claims, *errx.Error) {
	token, err := jwt.ParseWithClaims(raw, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, authz.ErrFor(authz.ReasonTokenExpired)
		}
		return nil, authz.ErrFor(authz.ReasonInvalidToken).WithCause(err)
	}
	if !token.Valid {
		return nil, authz.ErrFor(authz.ReasonInvalidToken)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok {
		return nil, authz.ErrFor(authz.ReasonInvalidToken)
	}

	out := &Claims{
		UserID:   kernel.NewUserID(claims.UserID),
		ClientID: kernel.NewClientID(claims.ClientID),
		TenantID: kernel.NewTenantID(claims.TenantID),
		Scopes:   claims.Scopes,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
