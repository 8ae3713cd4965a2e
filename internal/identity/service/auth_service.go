package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storehub/backend/internal/metrics"
	"storehub/backend/internal/platform/rbac"
	"storehub/backend/internal/security"
	sessiondomain "storehub/backend/internal/session/domain"
	userdomain "storehub/backend/internal/user/domain"
)

// Sentinel errors for the auth service; the HTTP handler maps them to status codes.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = security.ErrInvalidToken
	ErrAccountInactive    = errors.New("account inactive")
	ErrUnauthenticated    = rbac.ErrUnauthenticated
	ErrSessionNotFound    = errors.New("session not found")
)

// AuthResult holds the outcome of Login or Refresh. It never carries secret material other than the tokens.
type AuthResult struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Principal        *rbac.Principal
}

// AccountRepo is the minimal account repository needed by the auth service.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.Account, error)
	GetByUsername(ctx context.Context, username string) (*userdomain.Account, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// SessionRepo is the session persistence used by the auth service. AuthService is its only writer.
type SessionRepo interface {
	Replace(ctx context.Context, s *sessiondomain.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*sessiondomain.Session, error)
	GetByAccount(ctx context.Context, accountID string) (*sessiondomain.Session, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Authenticator is the session lifecycle API served over HTTP. AuthService and Audited implement it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	CurrentPrincipal(ctx context.Context, accessToken string) (*rbac.Principal, error)
	SessionForAccount(ctx context.Context, accountID string) (*sessiondomain.Session, error)
	RevokeAccountSessions(ctx context.Context, accountID string) (int64, error)
}

var _ Authenticator = (*AuthService)(nil)

// AuthService implements login, refresh, and logout with at most one refresh session per account.
type AuthService struct {
	accounts AccountRepo
	sessions SessionRepo
	hasher   *security.Hasher
	tokens   *security.TokenIssuer
	roles    *rbac.RoleTable
	metrics  *metrics.Auth
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. m and logger may be nil.
func NewAuthService(
	accounts AccountRepo,
	sessions SessionRepo,
	hasher *security.Hasher,
	tokens *security.TokenIssuer,
	roles *rbac.RoleTable,
	m *metrics.Auth,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if roles == nil {
		roles = rbac.DefaultRoleTable()
	}
	return &AuthService{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		roles:    roles,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("storehub/backend/identity"),
		now:      time.Now,
	}
}

// Login authenticates username/password, replaces any existing session of the account, and returns tokens.
// An unknown username and a wrong password are indistinguishable. A disabled or deleted account yields
// ErrAccountInactive only after the password matched.
func (s *AuthService) Login(ctx context.Context, username, password string) (res *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	start := s.now()
	defer func() {
		s.metrics.Login(resultLabel(err), s.now().Sub(start))
		endSpan(span, err)
	}()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	acct, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if acct == nil {
		s.hasher.Burn(password)
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, acct.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !acct.CanAuthenticate() {
		return nil, ErrAccountInactive
	}
	span.SetAttributes(attribute.String("account.id", acct.ID))

	now := s.now().UTC()
	if err := s.accounts.UpdateLastLogin(ctx, acct.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}

	principal := s.principalFor(acct)
	access, err := s.tokens.MintAccess(acct.ID, string(principal.Role), rbac.Strings(principal.Permissions))
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := s.tokens.MintRefresh(acct.ID)
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}
	sess := &sessiondomain.Session{
		ID:        uuid.NewString(),
		AccountID: acct.ID,
		TokenHash: security.HashRefreshToken(refresh.Value),
		ExpiresAt: refresh.ExpiresAt,
		CreatedAt: now,
	}
	if err := s.sessions.Replace(ctx, sess); err != nil {
		return nil, fmt.Errorf("replace session: %w", err)
	}
	s.logger.Debug("login", zap.String("account_id", acct.ID), zap.String("session_id", sess.ID))

	return &AuthResult{
		AccessToken:      access.Value,
		RefreshToken:     refresh.Value,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
		Principal:        principal,
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh token is not rotated: the
// result echoes it unchanged. An expired session is deleted on lookup.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (res *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer func() {
		s.metrics.Refresh(resultLabel(err))
		endSpan(span, err)
	}()

	if refreshToken == "" {
		return nil, ErrInvalidToken
	}
	hash := security.HashRefreshToken(refreshToken)
	sess, err := s.sessions.GetByTokenHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if sess == nil || !security.RefreshTokenHashEqual(refreshToken, sess.TokenHash) {
		return nil, ErrInvalidToken
	}
	if sess.Expired(s.now()) {
		if err := s.sessions.DeleteByTokenHash(ctx, hash); err != nil {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, ErrInvalidToken
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil || claims.Subject != sess.AccountID {
		return nil, ErrInvalidToken
	}
	span.SetAttributes(attribute.String("account.id", sess.AccountID))

	acct, err := s.accounts.GetByID(ctx, sess.AccountID)
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if acct == nil {
		return nil, ErrInvalidToken
	}
	if !acct.CanAuthenticate() {
		return nil, ErrAccountInactive
	}

	principal := s.principalFor(acct)
	access, err := s.tokens.MintAccess(acct.ID, string(principal.Role), rbac.Strings(principal.Permissions))
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	return &AuthResult{
		AccessToken:      access.Value,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: sess.ExpiresAt,
		Principal:        principal,
	}, nil
}

// Logout deletes the session of refreshToken if one exists. Unknown or empty tokens are not an error.
// Access tokens already issued stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Logout")
	defer func() {
		s.metrics.Logout()
		endSpan(span, err)
	}()

	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.DeleteByTokenHash(ctx, security.HashRefreshToken(refreshToken)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PrincipalFromToken verifies an access token and returns the principal embedded in its claims.
// It performs no I/O. Fails with ErrInvalidToken.
func (s *AuthService) PrincipalFromToken(accessToken string) (*rbac.Principal, error) {
	claims, err := s.tokens.Verify(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &rbac.Principal{
		AccountID:   claims.Subject,
		Role:        rbac.Role(claims.Role),
		Permissions: rbac.FromStrings(claims.Permissions),
	}, nil
}

// CurrentPrincipal resolves the caller of accessToken. An empty token fails with ErrUnauthenticated;
// an invalid one fails with an error matching both ErrUnauthenticated and ErrInvalidToken.
func (s *AuthService) CurrentPrincipal(_ context.Context, accessToken string) (*rbac.Principal, error) {
	if accessToken == "" {
		return nil, ErrUnauthenticated
	}
	p, err := s.PrincipalFromToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return p, nil
}

// SessionForAccount returns the account's live session or ErrSessionNotFound.
func (s *AuthService) SessionForAccount(ctx context.Context, accountID string) (*sessiondomain.Session, error) {
	sess, err := s.sessions.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if sess == nil || sess.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// RevokeAccountSessions deletes the account's session so its refresh token stops working.
// Returns the number of sessions removed.
func (s *AuthService) RevokeAccountSessions(ctx context.Context, accountID string) (int64, error) {
	n, err := s.sessions.DeleteByAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete account sessions: %w", err)
	}
	return n, nil
}

// CleanupExpired removes every expired session and returns how many were removed.
func (s *AuthService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	s.metrics.SessionsCleaned(n)
	return n, nil
}

func (s *AuthService) principalFor(acct *userdomain.Account) *rbac.Principal {
	if !s.roles.Valid(acct.Role) {
		s.logger.Warn("account role not in role table; only extra permissions apply",
			zap.String("account_id", acct.ID), zap.String("role", string(acct.Role)))
	}
	return &rbac.Principal{
		AccountID:   acct.ID,
		Username:    acct.Username,
		Role:        acct.Role,
		Permissions: s.roles.EffectivePermissions(acct.Role, acct.Permissions),
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrInvalidCredentials):
		return metrics.ResultInvalidCredentials
	case errors.Is(err, ErrInvalidToken):
		return metrics.ResultInvalidToken
	case errors.Is(err, ErrAccountInactive):
		return metrics.ResultAccountInactive
	default:
		return metrics.ResultError
	}
}

// endSpan marks infrastructure failures on the span; expected auth rejections are not span errors.
func endSpan(span trace.Span, err error) {
	if err != nil && resultLabel(err) == metrics.ResultError {
		span.RecordError(err)
		span.SetStatus(codes.Error, "internal error")
	}
	span.End()
}
