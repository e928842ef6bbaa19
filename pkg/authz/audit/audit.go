// Package audit is the fire-and-forget security event boundary. Recording an
// event must never block or fail the request being evaluated: implementations
// swallow their own errors.
package audit

import (
	"context"
	"time"

	"github.com/vantak/gatehouse/pkg/kernel"
)

// Severity ranks a security event.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Event is a single security event.
type Event struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Severity Severity               `json:"severity"`
	UserID   kernel.UserID          `json:"user_id,omitempty"`
	TenantID kernel.TenantID        `json:"tenant_id,omitempty"`
	ClientID kernel.ClientID        `json:"client_id,omitempty"`
	Address  string                 `json:"address,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
	At       time.Time              `json:"at"`
}

// Event names emitted by the engine.
const (
	EventAddressBlocked    = "address_blocked"
	EventAddressNotAllowed = "address_not_allowed"
	EventNewAddress        = "new_address"
	EventTenantMismatch    = "tenant_isolation_violation"
	EventTwoFactorRejected = "two_factor_enforcement"
)

// Recorder records security events.
type Recorder interface {
	Record(ctx context.Context, event Event)
}
