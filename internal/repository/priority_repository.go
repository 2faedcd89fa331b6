package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// PriorityRepository encapsulates priority reference data.
type PriorityRepository interface {
	ListAll(ctx context.Context) ([]domain.TicketPriority, error)
	GetByID(ctx context.Context, id string) (*domain.TicketPriority, error)
}

type priorityRepository struct {
	pool *pgxpool.Pool
}

// NewPriorityRepository instantiates repository.
func NewPriorityRepository(pool *pgxpool.Pool) PriorityRepository {
	return &priorityRepository{pool: pool}
}

func (r *priorityRepository) ListAll(ctx context.Context) ([]domain.TicketPriority, error) {
	const query = `
        SELECT id, name, rank
        FROM ticket_priorities
        ORDER BY rank`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketPriority
	for rows.Next() {
		var p domain.TicketPriority
		if err := rows.Scan(&p.ID, &p.Name, &p.Order); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *priorityRepository) GetByID(ctx context.Context, id string) (*domain.TicketPriority, error) {
	const query = `
        SELECT id, name, rank
        FROM ticket_priorities WHERE id = $1`
	var p domain.TicketPriority
	if err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Order); err != nil {
		return nil, err
	}
	return &p, nil
}
