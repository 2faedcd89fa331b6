package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EntityRepository encapsulates entity persistence.
type EntityRepository interface {
	ListByOwner(ctx context.Context, kind domain.EntityOwnerKind, ownerID string) ([]domain.Entity, error)
	Create(ctx context.Context, kind domain.EntityOwnerKind, ownerID string) (*domain.Entity, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Entity, error)
	ListForMembership(ctx context.Context, teamID, userTeamID string) ([]string, error)
}

type entityRepository struct {
	pool *pgxpool.Pool
}

// NewEntityRepository instantiates repository.
func NewEntityRepository(pool *pgxpool.Pool) EntityRepository {
	return &entityRepository{pool: pool}
}

func ownerColumn(kind domain.EntityOwnerKind) string {
	switch kind {
	case domain.OwnerKindTeam:
		return "team_id"
	case domain.OwnerKindUserTeam:
		return "user_team_id"
	case domain.OwnerKindAPIKey:
		return "api_key_id"
	}
	return ""
}

func (r *entityRepository) ListByOwner(ctx context.Context, kind domain.EntityOwnerKind, ownerID string) ([]domain.Entity, error) {
	col := ownerColumn(kind)
	if col == "" {
		return nil, errors.New("unknown owner kind")
	}
	// invalid rows (no owner or several owners) surface on every lookup so
	// the resolver can purge them
	query := `
        SELECT id, team_id, user_team_id, api_key_id, created_at
        FROM entities
        WHERE ` + col + ` = $1
           OR (num_nonnulls(team_id, user_team_id, api_key_id) <> 1)`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntities(rows)
}

func (r *entityRepository) Create(ctx context.Context, kind domain.EntityOwnerKind, ownerID string) (*domain.Entity, error) {
	col := ownerColumn(kind)
	if col == "" {
		return nil, errors.New("unknown owner kind")
	}
	query := `
        INSERT INTO entities (id, ` + col + `)
        VALUES (gen_random_uuid(), $1)
        RETURNING id, team_id, user_team_id, api_key_id, created_at`
	var e domain.Entity
	err := r.pool.QueryRow(ctx, query, ownerID).Scan(&e.ID, &e.TeamID, &e.UserTeamID, &e.APIKeyID, &e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// unique owner constraint: another resolver won the insert race
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *entityRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM entities WHERE id = $1`, id)
	return err
}

func (r *entityRepository) GetByID(ctx context.Context, id string) (*domain.Entity, error) {
	const query = `
        SELECT id, team_id, user_team_id, api_key_id, created_at
        FROM entities WHERE id = $1`
	var e domain.Entity
	if err := r.pool.QueryRow(ctx, query, id).Scan(&e.ID, &e.TeamID, &e.UserTeamID, &e.APIKeyID, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *entityRepository) ListForMembership(ctx context.Context, teamID, userTeamID string) ([]string, error) {
	const query = `
        SELECT id FROM entities
        WHERE team_id = $1 OR user_team_id = $2`
	rows, err := r.pool.Query(ctx, query, teamID, userTeamID)
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

func scanEntities(rows pgx.Rows) ([]domain.Entity, error) {
	var result []domain.Entity
	for rows.Next() {
		var e domain.Entity
		if err := rows.Scan(&e.ID, &e.TeamID, &e.UserTeamID, &e.APIKeyID, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
