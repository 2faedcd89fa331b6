package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// APIKeyRepository reads machine credentials. Secrets are hashed before
// storage; verification happens in the auth layer.
type APIKeyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.APIKey, error)
	Create(ctx context.Context, key *domain.APIKey) error
}

type apiKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository instantiates repository.
func NewAPIKeyRepository(pool *pgxpool.Pool) APIKeyRepository {
	return &apiKeyRepository{pool: pool}
}

func (r *apiKeyRepository) GetByID(ctx context.Context, id string) (*domain.APIKey, error) {
	const query = `
        SELECT id, name, secret_hash, permissions, active, created_at
        FROM api_keys WHERE id = $1`
	var k domain.APIKey
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&k.ID, &k.Name, &k.SecretHash, &k.Permissions, &k.Active, &k.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &k, nil
}

func (r *apiKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	const query = `
        INSERT INTO api_keys (id, name, secret_hash, permissions, active)
        VALUES (gen_random_uuid(), $1, $2, $3, $4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		key.Name, key.SecretHash, key.Permissions, key.Active,
	).Scan(&key.ID, &key.CreatedAt)
}
