package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditdomain "storehub/backend/internal/audit/domain"
	"storehub/backend/internal/platform/rbac"
)

type fakeRecorder struct {
	mu     sync.Mutex
	events []*auditdomain.Event
}

func (r *fakeRecorder) RecordAsync(_ context.Context, e *auditdomain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *fakeRecorder) last(t *testing.T) *auditdomain.Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1]
}

func TestAudited_RecordsOutcomes(t *testing.T) {
	f := newFixture(t)
	rec := &fakeRecorder{}
	a := NewAudited(f.svc, rec)
	ctx := context.Background()

	_, err := a.Login(ctx, "alice", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	e := rec.last(t)
	assert.Equal(t, auditdomain.ActionLogin, e.Action)
	assert.Equal(t, auditdomain.OutcomeFailure, e.Outcome)
	assert.Equal(t, "alice", e.Username)
	assert.Equal(t, "invalid_credentials", e.Detail)
	assert.Empty(t, e.AccountID)

	login, err := a.Login(ctx, "alice", alicePassword)
	require.NoError(t, err)
	e = rec.last(t)
	assert.Equal(t, auditdomain.OutcomeSuccess, e.Outcome)
	assert.Equal(t, "acct-alice", e.AccountID)

	_, err = a.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	e = rec.last(t)
	assert.Equal(t, auditdomain.ActionRefresh, e.Action)
	assert.Equal(t, "alice", e.Username)

	_, err = a.Refresh(ctx, "bogus")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, "invalid_token", rec.last(t).Detail)

	require.NoError(t, a.Logout(ctx, login.RefreshToken))
	e = rec.last(t)
	assert.Equal(t, auditdomain.ActionLogout, e.Action)
	assert.Equal(t, auditdomain.OutcomeSuccess, e.Outcome)
}

func TestAudited_RevokeRecordsActor(t *testing.T) {
	f := newFixture(t)
	rec := &fakeRecorder{}
	a := NewAudited(f.svc, rec)
	ctx := rbac.WithPrincipal(context.Background(), &rbac.Principal{AccountID: "acct-admin", Role: rbac.RoleAdmin})

	_, err := a.RevokeAccountSessions(ctx, "acct-alice")
	require.NoError(t, err)
	e := rec.last(t)
	assert.Equal(t, auditdomain.ActionSessionRevoke, e.Action)
	assert.Equal(t, "acct-alice", e.AccountID)
	assert.Equal(t, "revoked_by=acct-admin", e.Detail)
}

func TestAudited_PassthroughDoesNotRecord(t *testing.T) {
	f := newFixture(t)
	rec := &fakeRecorder{}
	a := NewAudited(f.svc, rec)

	_, err := a.CurrentPrincipal(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = a.SessionForAccount(context.Background(), "acct-alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, rec.events)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "account_inactive", failureReason(ErrAccountInactive))
	assert.Equal(t, "internal_error", failureReason(errors.New("db down")))
}

func TestAudited_NilRecorder(t *testing.T) {
	f := newFixture(t)
	a := NewAudited(f.svc, nil)
	_, err := a.Login(context.Background(), "alice", alicePassword)
	assert.NoError(t, err)
}
