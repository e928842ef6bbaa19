package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vantak/gatehouse/pkg/authz"
	"github.com/vantak/gatehouse/pkg/cachex"
	"github.com/vantak/gatehouse/pkg/kernel"
	"github.com/vantak/gatehouse/pkg/logx"
)

// Handle is a resolved tenant: the tenant record plus a live connection to
// its database partition.
type Handle struct {
	Tenant *Tenant
	DB     *sqlx.DB
}

// ConnectFunc opens a database handle for a tenant DSN. Injectable so tests
// resolve tenants without a real database.
type ConnectFunc func(dsn string) (*sqlx.DB, error)

// DefaultConnect opens a Postgres connection via sqlx.
func DefaultConnect(dsn string) (*sqlx.DB, error) {
	return sqlx.Connect("postgres", dsn)
}

// Resolver maps a tenant identifier to a live Handle using cache-aside over
// the shared cache: try the cache, on a hit refresh the TTL, on a miss read
// the canonical store and repopulate. Cache failures fall through to the
// canonical store and are never surfaced to the caller.
//
// Open database handles are pooled in-process per tenant; only the tenant
// descriptor travels through the cache.
type Resolver struct {
	repo    Repository
	cache   cachex.Store
	connect ConnectFunc
	ttl     time.Duration

	mu    sync.Mutex
	pools map[kernel.TenantID]*sqlx.DB
}

// NewResolver creates a resolver. A zero ttl falls back to one hour.
func NewResolver(repo Repository, cache cachex.Store, connect ConnectFunc, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if connect == nil {
		connect = DefaultConnect
	}
	return &Resolver{
		repo:    repo,
		cache:   cache,
		connect: connect,
		ttl:     ttl,
		pools:   make(map[kernel.TenantID]*sqlx.DB),
	}
}

func cacheKey(id kernel.TenantID) string {
	return fmt.Sprintf("tenant:%s", id)
}

// Resolve returns the Handle for a tenant. An empty id is a caller error,
// distinct from "not found". Concurrent resolutions for the same tenant may
// both miss and both write the cache; entries are equivalent, so last write
// wins without correctness impact.
func (r *Resolver) Resolve(ctx context.Context, id kernel.TenantID) (*Handle, error) {
	if id.IsEmpty() {
		return nil, authz.ErrRegistry.New(authz.CodeTenantIDRequired)
	}

	if t := r.fromCache(ctx, id); t != nil {
		return r.handleFor(t)
	}

	t, err := r.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Best effort: a failed cache write must not fail the resolution.
	if data, err := json.Marshal(t); err == nil {
		if err := r.cache.Set(ctx, cacheKey(id), data, r.ttl); err != nil {
			logx.WithError(err).WithField("tenant_id", id).
				Warn("tenant: cache write failed, serving from canonical store")
		}
	}

	return r.handleFor(t)
}

// fromCache reads the cached descriptor and refreshes its TTL on a hit.
func (r *Resolver) fromCache(ctx context.Context, id kernel.TenantID) *Tenant {
	data, ok, err := r.cache.Get(ctx, cacheKey(id))
	if err != nil {
		logx.WithError(err).WithField("tenant_id", id).
			Warn("tenant: cache read failed, falling back to canonical store")
		return nil
	}
	if !ok {
		return nil
	}

	var t Tenant
	if err := json.Unmarshal(data, &t); err != nil {
		logx.WithError(err).WithField("tenant_id", id).
			Warn("tenant: corrupt cache entry, falling back to canonical store")
		return nil
	}

	if err := r.cache.Set(ctx, cacheKey(id), data, r.ttl); err != nil {
		logx.WithError(err).WithField("tenant_id", id).
			Warn("tenant: cache TTL refresh failed")
	}
	return &t
}

// handleFor returns the pooled database handle for the tenant, opening one
// on first use.
func (r *Resolver) handleFor(t *Tenant) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	db, ok := r.pools[t.ID]
	if !ok {
		var err error
		db, err = r.connect(t.DatabaseDSN)
		if err != nil {
			return nil, authz.ErrStoreUnavailable(err).WithDetail("tenant_id", t.ID)
		}
		r.pools[t.ID] = db
	}
	return &Handle{Tenant: t, DB: db}, nil
}

// Invalidate drops the cached descriptor for a tenant and closes its pooled
// database handle, so the next resolution re-reads the canonical store and
// reconnects with the current DSN. Called by the (external) tenant-admin
// flows after a policy or connection change.
func (r *Resolver) Invalidate(ctx context.Context, id kernel.TenantID) {
	if err := r.cache.Delete(ctx, cacheKey(id)); err != nil {
		logx.WithError(err).WithField("tenant_id", id).
			Warn("tenant: cache invalidation failed")
	}

	r.mu.Lock()
	db, ok := r.pools[id]
	delete(r.pools, id)
	r.mu.Unlock()
	if ok {
		if err := db.Close(); err != nil {
			logx.WithError(err).WithField("tenant_id", id).
				Warn("tenant: closing pooled handle failed")
		}
	}
}

// Close releases all pooled tenant database handles.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, db := range r.pools {
		if err := db.Close(); err != nil {
			logx.WithError(err).WithField("tenant_id", id).
				Warn("tenant: closing pooled handle failed")
		}
		delete(r.pools, id)
	}
}
