package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storehub/backend/internal/session/domain"
)

const sessionColumns = `id, account_id, token_hash, expires_at, created_at`

// SQLRepository stores sessions in the sessions table (UNIQUE account_id, UNIQUE token_hash).
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository returns a session repository that uses the given db for persistence.
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Replace deletes the account's sessions and inserts s in one transaction. The insert upserts on
// account_id so that of two concurrent logins the later commit wins instead of failing.
func (r *SQLRepository) Replace(ctx context.Context, s *domain.Session) (err error) {
	if s.ID == "" || s.AccountID == "" || s.TokenHash == "" {
		return errors.New("session: id, account id and token hash are required")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE account_id = $1`, s.AccountID); err != nil {
		return fmt.Errorf("delete account sessions: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (account_id) DO UPDATE SET
		   id = excluded.id,
		   token_hash = excluded.token_hash,
		   expires_at = excluded.expires_at,
		   created_at = excluded.created_at`,
		s.ID, s.AccountID, s.TokenHash, s.ExpiresAt.UTC(), s.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByTokenHash returns the session with the given refresh token hash, or nil if not found.
func (r *SQLRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token_hash = $1`, tokenHash)
	return scanSession(row)
}

// GetByAccount returns the account's session, or nil if it has none.
func (r *SQLRepository) GetByAccount(ctx context.Context, accountID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE account_id = $1`, accountID)
	return scanSession(row)
}

// DeleteByTokenHash deletes the matching session. Deleting a missing session is not an error.
func (r *SQLRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	return err
}

// DeleteByAccount deletes all sessions of the account.
func (r *SQLRepository) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpired deletes sessions that expired at or before now.
func (r *SQLRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var s domain.Session
	if err := row.Scan(&s.ID, &s.AccountID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
