// Package tenantfakes provides an in-memory tenant repository for tests.
package tenantfakes

import (
	"context"
	"sync"

	"github.com/vantak/gatehouse/pkg/authz"
	"github.com/vantak/gatehouse/pkg/authz/tenant"
	"github.com/vantak/gatehouse/pkg/kernel"
)

// FakeTenantRepo is an in-memory tenant.Repository that counts canonical
// reads so tests can assert cache-aside behavior.
type FakeTenantRepo struct {
	mu      sync.RWMutex
	tenants map[kernel.TenantID]*tenant.Tenant
	reads   int

	// FailWith, when set, is returned from every lookup.
	FailWith error
}

// NewFakeTenantRepo creates an empty repo.
func NewFakeTenantRepo() *FakeTenantRepo {
	return &FakeTenantRepo{tenants: make(map[kernel.TenantID]*tenant.Tenant)}
}

// Add stores a tenant.
func (f *FakeTenantRepo) Add(t *tenant.Tenant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.tenants[t.ID] = &cp
}

// Reads reports how many canonical lookups have happened.
func (f *FakeTenantRepo) Reads() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.reads
}

func (f *FakeTenantRepo) FindByID(_ context.Context, id kernel.TenantID) (*tenant.Tenant, error) {
	f.mu.Lock()
	f.reads++
	f.mu.Unlock()

	if f.FailWith != nil {
		return nil, f.FailWith
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tenants[id]
	if !ok {
		return nil, authz.ErrRegistry.New(authz.CodeTenantNotFound).WithDetail("tenant_id", id)
	}
	cp := *t
	return &cp, nil
}
