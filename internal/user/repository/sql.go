package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"storehub/backend/internal/platform/rbac"
	"storehub/backend/internal/user/domain"
)

const accountColumns = `id, username, password_hash, role, permissions, active, deleted_at, last_login_at, created_at, updated_at`

// SQLRepository stores accounts in the accounts table. The same statements run on Postgres and SQLite.
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository returns an account repository that uses the given db for persistence.
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// GetByID returns the account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByUsername returns the account with the given username, or nil if not found.
func (r *SQLRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username)
	return scanAccount(row)
}

// Create persists the account. The account must have ID set; it is not assigned by this method.
func (r *SQLRepository) Create(ctx context.Context, a *domain.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Username, a.PasswordHash, string(a.Role), joinPermissions(a.Permissions), a.Active,
		timeToNullTime(a.DeletedAt), timeToNullTime(a.LastLoginAt), a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	return err
}

// UpdateLastLogin stamps the last successful authentication time.
func (r *SQLRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET last_login_at = $1, updated_at = $1 WHERE id = $2`, at.UTC(), id)
	return err
}

// SetActive sets the active flag. Updating a missing account is a no-op.
func (r *SQLRepository) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET active = $1, updated_at = $2 WHERE id = $3`, active, time.Now().UTC(), id)
	return err
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var (
		a           domain.Account
		role        string
		permissions string
		deletedAt   sql.NullTime
		lastLoginAt sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &role, &permissions, &a.Active,
		&deletedAt, &lastLoginAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Role = rbac.Role(role)
	a.Permissions = splitPermissions(permissions)
	a.DeletedAt = nullTimeToPtr(deletedAt)
	a.LastLoginAt = nullTimeToPtr(lastLoginAt)
	return &a, nil
}

// Supplemental permissions are stored comma-separated.
func joinPermissions(perms []rbac.Permission) string {
	return strings.Join(rbac.Strings(perms), ",")
}

func splitPermissions(s string) []rbac.Permission {
	if s == "" {
		return nil
	}
	var out []rbac.Permission
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, rbac.Permission(p))
		}
	}
	return out
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
