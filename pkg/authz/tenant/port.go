package tenant

import (
	"context"

	"github.com/vantak/gatehouse/pkg/kernel"
)

// Repository is the canonical tenant store. FindByID returns an errx error
// with code AUTHZ_TENANT_NOT_FOUND when the tenant does not exist, and an
// AUTHZ_STORE_UNAVAILABLE error when the store is unreachable.
type Repository interface {
	FindByID(ctx context.Context, id kernel.TenantID) (*Tenant, error)
}
