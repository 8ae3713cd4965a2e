package repository

import (
	"context"
	"time"

	"storehub/backend/internal/user/domain"
)

// Repository defines persistence for accounts. Lookups return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	// SetActive enables or disables login for the account.
	SetActive(ctx context.Context, id string, active bool) error
}
