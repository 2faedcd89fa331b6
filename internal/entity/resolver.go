// Package entity maintains the canonical polymorphic owner identity behind
// ticket assignment and creation.
package entity

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var errResolveRace = errors.New("entity insert lost race but no surviving row found")

// Repository is the storage surface the resolver needs. Create must be
// backed by a unique constraint on the owner reference so concurrent
// resolution of the same owner cannot race into duplicates.
type Repository interface {
	ListByOwner(ctx context.Context, kind domain.EntityOwnerKind, ownerID string) ([]domain.Entity, error)
	Create(ctx context.Context, kind domain.EntityOwnerKind, ownerID string) (*domain.Entity, error)
	Delete(ctx context.Context, id string) error
}

// Resolver maps an owner (team, user-team or API key) to its single entity,
// lazily creating a missing one and purging invalid or duplicate rows on
// detection.
type Resolver struct {
	repo   Repository
	logger *zap.Logger
}

// NewResolver constructs the resolver.
func NewResolver(repo Repository, logger *zap.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// Resolve returns the entity id for the owner, idempotently. Rows violating
// the exactly-one-owner invariant are deleted before resolution; when more
// than one valid row exists the oldest survives and the rest are purged.
func (r *Resolver) Resolve(ctx context.Context, kind domain.EntityOwnerKind, ownerID string) (string, error) {
	rows, err := r.repo.ListByOwner(ctx, kind, ownerID)
	if err != nil {
		return "", err
	}

	valid := make([]domain.Entity, 0, len(rows))
	for _, row := range rows {
		if !row.Valid() {
			r.logger.Warn("purging entity with invalid owner references",
				zap.String("entity_id", row.ID),
				zap.Int("owner_refs", row.OwnerRefCount()))
			if err := r.repo.Delete(ctx, row.ID); err != nil {
				return "", err
			}
			continue
		}
		valid = append(valid, row)
	}

	if len(valid) > 1 {
		for _, dup := range valid[1:] {
			r.logger.Warn("purging duplicate entity for owner",
				zap.String("entity_id", dup.ID),
				zap.String("owner_kind", string(kind)),
				zap.String("owner_id", ownerID))
			if err := r.repo.Delete(ctx, dup.ID); err != nil {
				return "", err
			}
		}
		valid = valid[:1]
	}

	if len(valid) == 1 {
		return valid[0].ID, nil
	}

	created, err := r.repo.Create(ctx, kind, ownerID)
	if err != nil {
		return "", err
	}
	if created != nil {
		return created.ID, nil
	}

	// lost the insert race; the winner's row is there now
	rows, err = r.repo.ListByOwner(ctx, kind, ownerID)
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if row.Valid() {
			return row.ID, nil
		}
	}
	return "", errResolveRace
}
