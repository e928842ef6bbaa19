// Package authz holds the shared vocabulary of the authorization engine:
// the decision returned to the request pipeline, the closed set of rejection
// reasons, and the error registry mapping each reason to an HTTP-class
// status. Reason codes are stable strings consumed by client SDKs and are
// deliberately distinct from HTTP statuses.
package authz

import (
	"net/http"

	"github.com/vantak/gatehouse/pkg/errx"
)

// Reason is a stable machine-readable rejection reason.
type Reason string

const (
	ReasonInvalidToken       Reason = "invalid-token"
	ReasonTokenExpired       Reason = "token-expired"
	ReasonRevoked            Reason = "revoked"
	ReasonInsufficientScope  Reason = "insufficient-scope"
	ReasonTenantMismatch     Reason = "tenant-mismatch"
	ReasonMaxSessions        Reason = "max-sessions-exceeded"
	ReasonSessionExpired     Reason = "session-expired"
	ReasonTwoFactorRequired  Reason = "2fa-required"
	ReasonIPBlocked          Reason = "blocked"
	ReasonIPNotAllowed       Reason = "not-allowed"
	ReasonTenantNotFound     Reason = "tenant-not-found"
	ReasonTenantSuspended    Reason = "tenant-suspended"
)

var ErrRegistry = errx.NewRegistry("AUTHZ")

var (
	CodeInvalidToken      = ErrRegistry.Register("INVALID_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or unverifiable token")
	CodeTokenExpired      = ErrRegistry.Register("TOKEN_EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Token expired")
	CodeTokenRevoked      = ErrRegistry.Register("TOKEN_REVOKED", errx.TypeAuthorization, http.StatusUnauthorized, "Token revoked")
	CodeInsufficientScope = ErrRegistry.Register("INSUFFICIENT_SCOPE", errx.TypeAuthorization, http.StatusForbidden, "Insufficient scope")
	CodeTenantMismatch    = ErrRegistry.Register("TENANT_MISMATCH", errx.TypeAuthorization, http.StatusForbidden, "Token not bound to requested tenant")
	CodeMaxSessions       = ErrRegistry.Register("MAX_SESSIONS", errx.TypeAuthorization, http.StatusForbidden, "Concurrent session limit exceeded")
	CodeSessionExpired    = ErrRegistry.Register("SESSION_EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Session expired")
	CodeTwoFactorRequired = ErrRegistry.Register("TWO_FACTOR_REQUIRED", errx.TypeAuthorization, http.StatusForbidden, "Two-factor enrolment required")
	CodeIPBlocked         = ErrRegistry.Register("IP_BLOCKED", errx.TypeAuthorization, http.StatusForbidden, "Address blocked")
	CodeIPNotAllowed      = ErrRegistry.Register("IP_NOT_ALLOWED", errx.TypeAuthorization, http.StatusForbidden, "Address not in allow list")
	CodeTenantNotFound    = ErrRegistry.Register("TENANT_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Tenant not found")
	CodeTenantSuspended   = ErrRegistry.Register("TENANT_SUSPENDED", errx.TypeAuthorization, http.StatusForbidden, "Tenant suspended")
	CodeTenantIDRequired  = ErrRegistry.Register("TENANT_ID_REQUIRED", errx.TypeValidation, http.StatusBadRequest, "Tenant identifier required")
	CodeStoreUnavailable  = ErrRegistry.Register("STORE_UNAVAILABLE", errx.TypeUnavailable, http.StatusServiceUnavailable, "Backing store unavailable")
)

// reasonCodes maps every rejection reason to its registered error code.
var reasonCodes = map[Reason]*errx.ErrorCode{
	ReasonInvalidToken:      CodeInvalidToken,
	ReasonTokenExpired:      CodeTokenExpired,
	ReasonRevoked:           CodeTokenRevoked,
	ReasonInsufficientScope: CodeInsufficientScope,
	ReasonTenantMismatch:    CodeTenantMismatch,
	ReasonMaxSessions:       CodeMaxSessions,
	ReasonSessionExpired:    CodeSessionExpired,
	ReasonTwoFactorRequired: CodeTwoFactorRequired,
	ReasonIPBlocked:         CodeIPBlocked,
	ReasonIPNotAllowed:      CodeIPNotAllowed,
	ReasonTenantNotFound:    CodeTenantNotFound,
	ReasonTenantSuspended:   CodeTenantSuspended,
}

// ErrFor builds the errx error for a rejection reason, carrying the reason
// as a stable detail so clients can branch without parsing messages.
func ErrFor(reason Reason) *errx.Error {
	code, ok := reasonCodes[reason]
	if !ok {
		code = CodeInvalidToken
	}
	return ErrRegistry.New(code).WithDetail("reason", string(reason))
}

// ErrStoreUnavailable wraps a backing-store failure as a retryable 503-class
// error. The engine never retries internally; the caller decides.
func ErrStoreUnavailable(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeStoreUnavailable, cause)
}
