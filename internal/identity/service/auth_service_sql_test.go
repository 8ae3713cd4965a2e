package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storehub/backend/internal/db/dbtest"
	"storehub/backend/internal/platform/rbac"
	"storehub/backend/internal/security"
	sessionrepo "storehub/backend/internal/session/repository"
	userdomain "storehub/backend/internal/user/domain"
	userrepo "storehub/backend/internal/user/repository"
)

func TestAuthService_SQLiteLifecycle(t *testing.T) {
	ctx := context.Background()
	sqlDB := dbtest.Open(t)
	accounts := userrepo.NewSQLRepository(sqlDB)
	sessions := sessionrepo.NewSQLRepository(sqlDB)

	hasher := security.NewHasher(4)
	hash, err := hasher.Hash([]byte(alicePassword))
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, accounts.Create(ctx, &userdomain.Account{
		ID: "acct-alice", Username: "alice", PasswordHash: hash, Role: rbac.RoleManager,
		Active: true, CreatedAt: now, UpdatedAt: now,
	}))

	tokens, err := security.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), "storehub-auth", "storehub-api", 15*time.Minute, 168*time.Hour)
	require.NoError(t, err)
	svc := NewAuthService(accounts, sessions, hasher, tokens, rbac.DefaultRoleTable(), nil, nil)

	first, err := svc.Login(ctx, "alice", alicePassword)
	require.NoError(t, err)
	second, err := svc.Login(ctx, "alice", alicePassword)
	require.NoError(t, err)

	var count int
	require.NoError(t, sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE account_id = $1`, "acct-alice").Scan(&count))
	assert.Equal(t, 1, count)

	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	refreshed, err := svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, second.RefreshToken, refreshed.RefreshToken)
	assert.True(t, refreshed.Principal.Has(rbac.PermUsersRead))

	acct, err := accounts.GetByID(ctx, "acct-alice")
	require.NoError(t, err)
	require.NotNil(t, acct.LastLoginAt)

	require.NoError(t, svc.Logout(ctx, second.RefreshToken))
	require.NoError(t, sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count))
	assert.Equal(t, 0, count)

	_, err = svc.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
