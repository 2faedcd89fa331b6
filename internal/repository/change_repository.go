package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ChangeRepository reads ticket change records.
type ChangeRepository interface {
	GetByID(ctx context.Context, id string) (*domain.TicketChange, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketChange, error)
}

type changeRepository struct {
	pool *pgxpool.Pool
}

// NewChangeRepository instantiates repository.
func NewChangeRepository(pool *pgxpool.Pool) ChangeRepository {
	return &changeRepository{pool: pool}
}

func (r *changeRepository) GetByID(ctx context.Context, id string) (*domain.TicketChange, error) {
	const query = `
        SELECT id, ticket_id, field, from_value, to_value, actor_entity_id, created_at
        FROM ticket_changes WHERE id = $1`
	var c domain.TicketChange
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.TicketID, &c.Field, &c.FromValue, &c.ToValue, &c.ActorEntityID, &c.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *changeRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketChange, error) {
	const query = `
        SELECT id, ticket_id, field, from_value, to_value, actor_entity_id, created_at
        FROM ticket_changes WHERE ticket_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []domain.TicketChange
	for rows.Next() {
		var c domain.TicketChange
		if err := rows.Scan(&c.ID, &c.TicketID, &c.Field, &c.FromValue, &c.ToValue, &c.ActorEntityID, &c.CreatedAt); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
