package service

import (
	"context"
	"errors"

	auditdomain "storehub/backend/internal/audit/domain"
	"storehub/backend/internal/platform/rbac"
	sessiondomain "storehub/backend/internal/session/domain"
)

// AuditRecorder records events without blocking the caller. *audit.Logger implements it.
type AuditRecorder interface {
	RecordAsync(ctx context.Context, e *auditdomain.Event)
}

// Audited wraps an Authenticator and records the outcome of each mutating call.
// Recording is fire-and-forget; it never changes the wrapped call's result.
type Audited struct {
	next     Authenticator
	recorder AuditRecorder
}

var _ Authenticator = (*Audited)(nil)

// NewAudited returns next decorated with audit recording. A nil recorder disables recording.
func NewAudited(next Authenticator, recorder AuditRecorder) *Audited {
	return &Audited{next: next, recorder: recorder}
}

func (a *Audited) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	res, err := a.next.Login(ctx, username, password)
	e := &auditdomain.Event{Action: auditdomain.ActionLogin, Username: username}
	if res != nil && res.Principal != nil {
		e.AccountID = res.Principal.AccountID
	}
	a.record(ctx, e, err)
	return res, err
}

func (a *Audited) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	res, err := a.next.Refresh(ctx, refreshToken)
	e := &auditdomain.Event{Action: auditdomain.ActionRefresh}
	if res != nil && res.Principal != nil {
		e.AccountID = res.Principal.AccountID
		e.Username = res.Principal.Username
	}
	a.record(ctx, e, err)
	return res, err
}

func (a *Audited) Logout(ctx context.Context, refreshToken string) error {
	err := a.next.Logout(ctx, refreshToken)
	e := &auditdomain.Event{Action: auditdomain.ActionLogout}
	if p, ok := rbac.PrincipalFromContext(ctx); ok {
		e.AccountID = p.AccountID
	}
	a.record(ctx, e, err)
	return err
}

func (a *Audited) CurrentPrincipal(ctx context.Context, accessToken string) (*rbac.Principal, error) {
	return a.next.CurrentPrincipal(ctx, accessToken)
}

func (a *Audited) SessionForAccount(ctx context.Context, accountID string) (*sessiondomain.Session, error) {
	return a.next.SessionForAccount(ctx, accountID)
}

func (a *Audited) RevokeAccountSessions(ctx context.Context, accountID string) (int64, error) {
	n, err := a.next.RevokeAccountSessions(ctx, accountID)
	e := &auditdomain.Event{Action: auditdomain.ActionSessionRevoke, AccountID: accountID}
	if p, ok := rbac.PrincipalFromContext(ctx); ok {
		e.Detail = "revoked_by=" + p.AccountID
	}
	a.record(ctx, e, err)
	return n, err
}

func (a *Audited) record(ctx context.Context, e *auditdomain.Event, err error) {
	if a.recorder == nil {
		return
	}
	e.Outcome = auditdomain.OutcomeSuccess
	if err != nil {
		e.Outcome = auditdomain.OutcomeFailure
		e.Detail = joinDetail(e.Detail, failureReason(err))
	}
	a.recorder.RecordAsync(ctx, e)
}

// failureReason names the error class only; messages of infrastructure errors stay out of the trail.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrAccountInactive):
		return "account_inactive"
	default:
		return "internal_error"
	}
}

func joinDetail(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}
