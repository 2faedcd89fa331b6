package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CategoryRepository encapsulates category persistence.
type CategoryRepository interface {
	ListAll(ctx context.Context) ([]domain.TicketCategory, error)
	GrantedCategoryIDs(ctx context.Context, teamIDs []string) ([]string, error)
	GetByID(ctx context.Context, id string) (*domain.TicketCategory, error)
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository instantiates repository.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

func (r *categoryRepository) ListAll(ctx context.Context) ([]domain.TicketCategory, error) {
	const query = `
        SELECT id, parent_id, name, priority_order, created_at
        FROM ticket_categories
        ORDER BY priority_order, name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketCategory
	for rows.Next() {
		var c domain.TicketCategory
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Name, &c.PriorityOrder, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *categoryRepository) GrantedCategoryIDs(ctx context.Context, teamIDs []string) ([]string, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	const query = `
        SELECT DISTINCT category_id
        FROM team_category_grants
        WHERE team_id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, teamIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.TicketCategory, error) {
	const query = `
        SELECT id, parent_id, name, priority_order, created_at
        FROM ticket_categories WHERE id = $1`
	var c domain.TicketCategory
	if err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.ParentID, &c.Name, &c.PriorityOrder, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
