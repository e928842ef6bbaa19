package sessioninfra

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/vantak/gatehouse/pkg/authz"
	"github.com/vantak/gatehouse/pkg/authz/session"
	"github.com/vantak/gatehouse/pkg/errx"
	"github.com/vantak/gatehouse/pkg/kernel"
)

var ErrRegistry = errx.NewRegistry("SESSION_STORE")

var (
	CodeTokenNotFound = ErrRegistry.Register("TOKEN_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Token record not found")
	CodeUserNotFound  = ErrRegistry.Register("USER_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User record not found")
)

// PostgresTokenRepository persists token records. Rows are never deleted;
// revocation flips a single flag so the record survives for audit.
type PostgresTokenRepository struct {
	db *sqlx.DB
}

// NewPostgresTokenRepository creates a token repository.
func NewPostgresTokenRepository(db *sqlx.DB) session.TokenRepository {
	return &PostgresTokenRepository{db: db}
}

type tokenRow struct {
	AccessToken string         `db:"access_token"`
	UserID      sql.NullString `db:"user_id"`
	ClientID    sql.NullString `db:"client_id"`
	TenantID    string         `db:"tenant_id"`
	Scopes      pq.StringArray `db:"scopes"`
	CreatedAt   time.Time      `db:"created_at"`
	ExpiresAt   time.Time      `db:"expires_at"`
	Revoked     bool           `db:"revoked"`
}

func (r tokenRow) toDomain() *session.Token {
	return &session.Token{
		AccessToken: r.AccessToken,
		UserID:      kernel.NewUserID(r.UserID.String),
		ClientID:    kernel.NewClientID(r.ClientID.String),
		TenantID:    kernel.NewTenantID(r.TenantID),
		Scopes:      []string(r.Scopes),
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		Revoked:     r.Revoked,
	}
}

// FindByAccessToken looks up the authoritative token record.
func (r *PostgresTokenRepository) FindByAccessToken(ctx context.Context, accessToken string) (*session.Token, error) {
	query := `
		SELECT access_token, user_id, client_id, tenant_id, scopes,
		       created_at, expires_at, revoked
		FROM tokens
		WHERE access_token = $1`

	var row tokenRow
	if err := r.db.GetContext(ctx, &row, query, accessToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistry.New(CodeTokenNotFound)
		}
		return nil, authz.ErrStoreUnavailable(err)
	}
	return row.toDomain(), nil
}

// FindActiveByUser returns the user's non-revoked, unexpired tokens, oldest
// first.
func (r *PostgresTokenRepository) FindActiveByUser(ctx context.Context, userID kernel.UserID, now time.Time) ([]*session.Token, error) {
	query := `
		SELECT access_token, user_id, client_id, tenant_id, scopes,
		       created_at, expires_at, revoked
		FROM tokens
		WHERE user_id = $1 AND revoked = FALSE AND expires_at > $2
		ORDER BY created_at ASC`

	var rows []tokenRow
	if err := r.db.SelectContext(ctx, &rows, query, userID.String(), now); err != nil {
		return nil, authz.ErrStoreUnavailable(err).WithDetail("user_id", userID)
	}

	tokens := make([]*session.Token, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, row.toDomain())
	}
	return tokens, nil
}

// Revoke flips the revoked flag. Revoking an absent or already-revoked
// token is a no-op.
func (r *PostgresTokenRepository) Revoke(ctx context.Context, accessToken string) error {
	query := `UPDATE tokens SET revoked = TRUE WHERE access_token = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, accessToken); err != nil {
		return authz.ErrStoreUnavailable(err)
	}
	return nil
}

// UpdateExpiry slides the token expiry forward.
func (r *PostgresTokenRepository) UpdateExpiry(ctx context.Context, accessToken string, expiresAt time.Time) error {
	query := `UPDATE tokens SET expires_at = $2 WHERE access_token = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, accessToken, expiresAt); err != nil {
		return authz.ErrStoreUnavailable(err)
	}
	return nil
}

// PostgresUserRepository reads the partial user view needed for two-factor
// grace accounting.
type PostgresUserRepository struct {
	db *sqlx.DB
}

// NewPostgresUserRepository creates a user repository.
func NewPostgresUserRepository(db *sqlx.DB) session.UserRepository {
	return &PostgresUserRepository{db: db}
}

// FindByID reads a user's 2FA-relevant fields.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id kernel.UserID) (*session.User, error) {
	query := `
		SELECT id, email, two_factor_enabled, login_count, created_at
		FROM users
		WHERE id = $1`

	var user session.User
	if err := r.db.GetContext(ctx, &user, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistry.New(CodeUserNotFound).WithDetail("user_id", id)
		}
		return nil, authz.ErrStoreUnavailable(err).WithDetail("user_id", id)
	}
	return &user, nil
}

// IncrementLoginCount bumps the grace-login counter atomically.
func (r *PostgresUserRepository) IncrementLoginCount(ctx context.Context, id kernel.UserID) error {
	query := `UPDATE users SET login_count = login_count + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id.String()); err != nil {
		return authz.ErrStoreUnavailable(err).WithDetail("user_id", id)
	}
	return nil
}
