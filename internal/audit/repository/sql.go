package repository

import (
	"context"
	"database/sql"

	"storehub/backend/internal/audit/domain"
)

const eventColumns = `id, account_id, username, action, outcome, ip, detail, created_at`

// SQLRepository stores audit events in the audit_logs table.
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository returns an audit repository that uses the given db for persistence.
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Create persists the event. The event must have ID set. Writing an ID that already exists is a no-op,
// so redelivered events are stored once.
func (r *SQLRepository) Create(ctx context.Context, e *domain.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (`+eventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO NOTHING`,
		e.ID, e.AccountID, e.Username, string(e.Action), string(e.Outcome), e.IP, e.Detail, e.CreatedAt.UTC(),
	)
	return err
}

// Record implements audit.Sink.
func (r *SQLRepository) Record(ctx context.Context, e *domain.Event) error {
	return r.Create(ctx, e)
}

// ListRecent returns events newest first, paginated by limit and offset.
func (r *SQLRepository) ListRecent(ctx context.Context, limit, offset int) ([]*domain.Event, error) {
	return r.list(ctx,
		`SELECT `+eventColumns+` FROM audit_logs ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
		limit, offset)
}

// ListByAccount returns the account's events newest first.
func (r *SQLRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Event, error) {
	return r.list(ctx,
		`SELECT `+eventColumns+` FROM audit_logs WHERE account_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
}

func (r *SQLRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var (
			e       domain.Event
			action  string
			outcome string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Username, &action, &outcome, &e.IP, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = domain.Action(action)
		e.Outcome = domain.Outcome(outcome)
		out = append(out, &e)
	}
	return out, rows.Err()
}
