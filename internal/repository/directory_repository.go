package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// DirectoryRepository builds actor permission bundles from current user,
// team and membership rows. Bundles are assembled fresh on every call;
// nothing here caches, so permission and membership edits take effect on
// the next request or pipeline run.
type DirectoryRepository interface {
	GetActor(ctx context.Context, userID string) (*domain.Actor, error)
	ListActors(ctx context.Context) ([]domain.Actor, error)
	MembershipEntityIDs(ctx context.Context, teamID, userTeamID string) ([]string, error)
}

type directoryRepository struct {
	pool     *pgxpool.Pool
	entities EntityRepository
}

// NewDirectoryRepository instantiates repository.
func NewDirectoryRepository(pool *pgxpool.Pool, entities EntityRepository) DirectoryRepository {
	return &directoryRepository{pool: pool, entities: entities}
}

// membershipsQuery joins active memberships with their team's permission
// set. Inactive memberships contribute nothing to a bundle.
const membershipsQuery = `
    SELECT ut.id, ut.team_id, t.permissions, ut.permissions
    FROM user_teams ut
    JOIN teams t ON t.id = ut.team_id
    WHERE ut.user_id = $1 AND ut.active`

func (r *directoryRepository) GetActor(ctx context.Context, userID string) (*domain.Actor, error) {
	const userQuery = `SELECT permissions FROM users WHERE id = $1`
	var userPerms []string
	if err := r.pool.QueryRow(ctx, userQuery, userID).Scan(&userPerms); err != nil {
		return nil, err
	}

	actor := domain.Actor{
		UserID:          userID,
		UserPermissions: domain.ParsePermissions(userPerms),
	}

	rows, err := r.pool.Query(ctx, membershipsQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m domain.TeamMembership
		var teamPerms, memberPerms []string
		if err := rows.Scan(&m.UserTeamID, &m.TeamID, &teamPerms, &memberPerms); err != nil {
			return nil, err
		}
		m.TeamPermissions = domain.ParsePermissions(teamPerms)
		m.MembershipPermissions = domain.ParsePermissions(memberPerms)
		actor.Teams = append(actor.Teams, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &actor, nil
}

// ListActors loads the whole roster in two queries and assembles bundles
// in memory. Used by the audience resolver, which needs every candidate.
func (r *directoryRepository) ListActors(ctx context.Context) ([]domain.Actor, error) {
	const usersQuery = `SELECT id, permissions FROM users ORDER BY id`
	rows, err := r.pool.Query(ctx, usersQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actors []domain.Actor
	index := make(map[string]int)
	for rows.Next() {
		var id string
		var perms []string
		if err := rows.Scan(&id, &perms); err != nil {
			return nil, err
		}
		index[id] = len(actors)
		actors = append(actors, domain.Actor{
			UserID:          id,
			UserPermissions: domain.ParsePermissions(perms),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const allMemberships = `
        SELECT ut.user_id, ut.id, ut.team_id, t.permissions, ut.permissions
        FROM user_teams ut
        JOIN teams t ON t.id = ut.team_id
        WHERE ut.active`
	mrows, err := r.pool.Query(ctx, allMemberships)
	if err != nil {
		return nil, err
	}
	defer mrows.Close()
	for mrows.Next() {
		var userID string
		var m domain.TeamMembership
		var teamPerms, memberPerms []string
		if err := mrows.Scan(&userID, &m.UserTeamID, &m.TeamID, &teamPerms, &memberPerms); err != nil {
			return nil, err
		}
		i, ok := index[userID]
		if !ok {
			continue
		}
		m.TeamPermissions = domain.ParsePermissions(teamPerms)
		m.MembershipPermissions = domain.ParsePermissions(memberPerms)
		actors[i].Teams = append(actors[i].Teams, m)
	}
	if err := mrows.Err(); err != nil {
		return nil, err
	}
	return actors, nil
}

func (r *directoryRepository) MembershipEntityIDs(ctx context.Context, teamID, userTeamID string) ([]string, error) {
	return r.entities.ListForMembership(ctx, teamID, userTeamID)
}
