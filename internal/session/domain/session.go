package domain

import "time"

// Session is the persisted refresh session of an account. At most one exists per account.
// TokenHash is the SHA-256 of the refresh token; the raw token is never stored.
type Session struct {
	ID        string
	AccountID string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
