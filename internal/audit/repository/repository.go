package repository

import (
	"context"

	"storehub/backend/internal/audit/domain"
)

// Repository defines persistence for audit events.
type Repository interface {
	Create(ctx context.Context, e *domain.Event) error
	// ListRecent returns events newest first.
	ListRecent(ctx context.Context, limit, offset int) ([]*domain.Event, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Event, error)
}
