package repository

import (
	"context"
	"time"

	"storehub/backend/internal/session/domain"
)

// Repository defines persistence for refresh sessions. Lookups return (nil, nil) when no row matches.
type Repository interface {
	// Replace removes every session of s.AccountID and stores s, atomically.
	Replace(ctx context.Context, s *domain.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	GetByAccount(ctx context.Context, accountID string) (*domain.Session, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	// DeleteByAccount returns the number of sessions removed.
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)
	// DeleteExpired removes sessions with expires_at at or before now and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
