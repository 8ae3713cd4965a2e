package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storehub/backend/internal/db/dbtest"
	"storehub/backend/internal/session/domain"
)

func seedAccount(t *testing.T, db *sql.DB) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO accounts (id, username, password_hash, role, permissions, active, created_at, updated_at)
		VALUES ($1, $2, 'x', 'USER', '', 1, $3, $3)`, id, "user-"+id[:8], now)
	require.NoError(t, err)
	return id
}

func newSession(accountID, hash string, expiresAt time.Time) *domain.Session {
	return &domain.Session{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
}

func countSessions(t *testing.T, db *sql.DB, accountID string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE account_id = $1`, accountID).Scan(&n))
	return n
}

func TestSQLRepository_ReplaceKeepsOneSessionPerAccount(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewSQLRepository(db)
	account := seedAccount(t, db)
	exp := time.Now().Add(time.Hour)

	first := newSession(account, "hash-1", exp)
	require.NoError(t, repo.Replace(ctx, first))
	require.NoError(t, repo.Replace(ctx, newSession(account, "hash-2", exp)))
	assert.Equal(t, 1, countSessions(t, db, account))

	old, err := repo.GetByTokenHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Nil(t, old)

	cur, err := repo.GetByTokenHash(ctx, "hash-2")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, account, cur.AccountID)
	assert.WithinDuration(t, exp, cur.ExpiresAt, time.Second)

	byAccount, err := repo.GetByAccount(ctx, account)
	require.NoError(t, err)
	require.NotNil(t, byAccount)
	assert.Equal(t, cur.ID, byAccount.ID)
}

func TestSQLRepository_ReplaceDoesNotTouchOtherAccounts(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewSQLRepository(db)
	a, b := seedAccount(t, db), seedAccount(t, db)
	exp := time.Now().Add(time.Hour)

	require.NoError(t, repo.Replace(ctx, newSession(a, "a-1", exp)))
	require.NoError(t, repo.Replace(ctx, newSession(b, "b-1", exp)))
	require.NoError(t, repo.Replace(ctx, newSession(a, "a-2", exp)))

	got, err := repo.GetByTokenHash(ctx, "b-1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSQLRepository_ReplaceRejectsIncomplete(t *testing.T) {
	repo := NewSQLRepository(dbtest.Open(t))
	assert.Error(t, repo.Replace(context.Background(), &domain.Session{ID: "x"}))
}

func TestSQLRepository_DeleteOperations(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewSQLRepository(db)
	account := seedAccount(t, db)

	require.NoError(t, repo.Replace(ctx, newSession(account, "h", time.Now().Add(time.Hour))))
	require.NoError(t, repo.DeleteByTokenHash(ctx, "h"))
	require.NoError(t, repo.DeleteByTokenHash(ctx, "h"))
	assert.Equal(t, 0, countSessions(t, db, account))

	require.NoError(t, repo.Replace(ctx, newSession(account, "h2", time.Now().Add(time.Hour))))
	n, err := repo.DeleteByAccount(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = repo.DeleteByAccount(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSQLRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewSQLRepository(db)
	live, dead := seedAccount(t, db), seedAccount(t, db)
	now := time.Now().UTC()

	require.NoError(t, repo.Replace(ctx, newSession(live, "live", now.Add(time.Hour))))
	require.NoError(t, repo.Replace(ctx, newSession(dead, "dead", now.Add(-time.Minute))))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByTokenHash(ctx, "dead")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = repo.GetByTokenHash(ctx, "live")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSQLRepository_SessionsCascadeWithAccount(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewSQLRepository(db)
	account := seedAccount(t, db)

	require.NoError(t, repo.Replace(ctx, newSession(account, "h", time.Now().Add(time.Hour))))
	_, err := db.Exec(`DELETE FROM accounts WHERE id = $1`, account)
	require.NoError(t, err)
	assert.Equal(t, 0, countSessions(t, db, account))
}
