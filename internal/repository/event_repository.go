package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventRepository reads notification events by their numeric id.
type EventRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.NotificationEvent, error)
}

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository instantiates repository.
func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &eventRepository{pool: pool}
}

func (r *eventRepository) GetByID(ctx context.Context, id int64) (*domain.NotificationEvent, error) {
	const query = `
        SELECT id, type, thread_id, change_id, created_at
        FROM notification_events WHERE id = $1`
	var ev domain.NotificationEvent
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ev.ID, &ev.Type, &ev.ThreadID, &ev.ChangeID, &ev.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &ev, nil
}
