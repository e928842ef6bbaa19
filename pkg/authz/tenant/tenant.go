package tenant

import (
	"time"

	"github.com/vantak/gatehouse/pkg/authz/ipfilter"
	"github.com/vantak/gatehouse/pkg/kernel"
)

// Status is a tenant's lifecycle state.
type Status string

const (
	StatusActive          Status = "active"
	StatusSuspended       Status = "suspended"
	StatusPendingDeletion Status = "pending_deletion"
)

// Tenant is an isolated customer organization: its data partition plus the
// security policy enforced on every request targeting it.
type Tenant struct {
	ID          kernel.TenantID `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Status      Status          `json:"status" db:"status"`
	// DatabaseDSN travels through the shared cache inside the tenant
	// descriptor; tenants are never serialized onto API responses.
	DatabaseDSN string          `json:"database_dsn" db:"database_dsn"`
	Policy      SecurityPolicy  `json:"policy" db:"policy"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// SecurityPolicy nests the per-tenant policy sections.
type SecurityPolicy struct {
	Password      PasswordPolicy  `json:"password"`
	Session       SessionPolicy   `json:"session"`
	TwoFactor     TwoFactorPolicy `json:"two_factor"`
	IPRestriction ipfilter.Policy `json:"ip_restriction"`
}

// PasswordPolicy is read-only here; enforcement happens in the (external)
// credential flows.
type PasswordPolicy struct {
	MinLength      int  `json:"min_length"`
	RequireUpper   bool `json:"require_upper"`
	RequireNumber  bool `json:"require_number"`
	RequireSymbol  bool `json:"require_symbol"`
	MaxAgeDays     int  `json:"max_age_days"`
	HistoryEntries int  `json:"history_entries"`
}

// SessionPolicy governs concurrent sessions and timeouts.
type SessionPolicy struct {
	MaxConcurrentSessions int  `json:"max_concurrent_sessions"`
	SessionTimeoutSeconds int  `json:"session_timeout_seconds"`
	ExtendOnActivity      bool `json:"extend_on_activity"`
	RequireMFA            bool `json:"require_mfa"`
}

// Timeout returns the session timeout as a duration.
func (p SessionPolicy) Timeout() time.Duration {
	return time.Duration(p.SessionTimeoutSeconds) * time.Second
}

// TwoFactorPolicy governs the mandatory-2FA grace window.
type TwoFactorPolicy struct {
	Required            bool `json:"required"`
	GracePeriodDays     int  `json:"grace_period_days"`
	GraceLogins         int  `json:"grace_logins"`
	AllowBackupCodes    bool `json:"allow_backup_codes"`
	AllowRememberDevice bool `json:"allow_remember_device"`
}

// GracePeriodEnd returns the instant the time-based grace window closes for
// a user created at the given time.
func (p TwoFactorPolicy) GracePeriodEnd(createdAt time.Time) time.Time {
	return createdAt.AddDate(0, 0, p.GracePeriodDays)
}

// IsActive reports whether requests targeting this tenant may proceed.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}
