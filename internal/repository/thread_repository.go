package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ThreadRepository reads ticket threads.
type ThreadRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Thread, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Thread, error)
	IsFirstThread(ctx context.Context, thread *domain.Thread) (bool, error)
}

type threadRepository struct {
	pool *pgxpool.Pool
}

// NewThreadRepository instantiates repository.
func NewThreadRepository(pool *pgxpool.Pool) ThreadRepository {
	return &threadRepository{pool: pool}
}

func (r *threadRepository) GetByID(ctx context.Context, id string) (*domain.Thread, error) {
	const query = `
        SELECT id, ticket_id, body, author_entity_id, created_at
        FROM threads WHERE id = $1`
	var t domain.Thread
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.TicketID, &t.Body, &t.AuthorEntityID, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *threadRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Thread, error) {
	const query = `
        SELECT id, ticket_id, body, author_entity_id, created_at
        FROM threads WHERE ticket_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []domain.Thread
	for rows.Next() {
		var t domain.Thread
		if err := rows.Scan(&t.ID, &t.TicketID, &t.Body, &t.AuthorEntityID, &t.CreatedAt); err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// IsFirstThread reports whether no earlier thread exists on the same
// ticket. Ties on created_at break by id so the answer is stable.
func (r *threadRepository) IsFirstThread(ctx context.Context, thread *domain.Thread) (bool, error) {
	const query = `
        SELECT NOT EXISTS (
            SELECT 1 FROM threads
            WHERE ticket_id = $1
              AND (created_at < $2 OR (created_at = $2 AND id < $3))
        )`
	var first bool
	if err := r.pool.QueryRow(ctx, query, thread.TicketID, thread.CreatedAt, thread.ID).Scan(&first); err != nil {
		return false, err
	}
	return first, nil
}
