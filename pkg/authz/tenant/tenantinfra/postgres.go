package tenantinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vantak/gatehouse/pkg/authz"
	"github.com/vantak/gatehouse/pkg/authz/tenant"
	"github.com/vantak/gatehouse/pkg/errx"
	"github.com/vantak/gatehouse/pkg/kernel"
)

// PostgresTenantRepository is the canonical tenant store.
type PostgresTenantRepository struct {
	db *sqlx.DB
}

// NewPostgresTenantRepository creates a new repository over the platform DB.
func NewPostgresTenantRepository(db *sqlx.DB) tenant.Repository {
	return &PostgresTenantRepository{db: db}
}

// tenantRow is the persistence shape; the security policy is a JSONB column.
type tenantRow struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Status      string          `db:"status"`
	DatabaseDSN string          `db:"database_dsn"`
	Policy      json.RawMessage `db:"policy"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// FindByID reads a tenant with its nested security policy.
func (r *PostgresTenantRepository) FindByID(ctx context.Context, id kernel.TenantID) (*tenant.Tenant, error) {
	query := `
		SELECT id, name, status, database_dsn, policy, created_at, updated_at
		FROM tenants
		WHERE id = $1`

	var row tenantRow
	if err := r.db.GetContext(ctx, &row, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authz.ErrRegistry.New(authz.CodeTenantNotFound).
				WithDetail("tenant_id", id)
		}
		return nil, authz.ErrStoreUnavailable(err).WithDetail("tenant_id", id)
	}

	t := &tenant.Tenant{
		ID:          kernel.NewTenantID(row.ID),
		Name:        row.Name,
		Status:      tenant.Status(row.Status),
		DatabaseDSN: row.DatabaseDSN,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if len(row.Policy) > 0 {
		if err := json.Unmarshal(row.Policy, &t.Policy); err != nil {
			return nil, errx.Wrap(err, "failed to decode tenant security policy", errx.TypeInternal).
				WithDetail("tenant_id", id)
		}
	}
	return t, nil
}
