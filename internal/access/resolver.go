package access

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketRepository answers ownership-snapshot queries.
type TicketRepository interface {
	// QueryByRules returns the relations of every ticket matched by at
	// least one rule; matchAll bypasses the predicate entirely.
	QueryByRules(ctx context.Context, rules []AccessRule, matchAll bool) ([]TicketRelations, error)
	// RelationsFor returns the snapshot for one ticket, or pgx.ErrNoRows.
	RelationsFor(ctx context.Context, ticketID string) (*TicketRelations, error)
}

// Directory lists the actors and entity identities the reverse resolution
// walks over.
type Directory interface {
	// ListActors returns every user as a fully-built permission bundle,
	// with inactive memberships already excluded.
	ListActors(ctx context.Context) ([]domain.Actor, error)
	// MembershipEntityIDs returns the entity ids standing in for a
	// membership and its team.
	MembershipEntityIDs(ctx context.Context, teamID, userTeamID string) ([]string, error)
}

// TicketAccess is one visible ticket with the full provenance of rules
// that grant it. A ticket reachable through several independent rules lists
// each of them.
type TicketAccess struct {
	TicketID string
	Via      []AccessRule
}

// MembershipAccess is the per-membership breakdown of reverse resolution.
type MembershipAccess struct {
	UserTeamID          string
	TeamID              string
	EntityIDs           []string
	GrantingPermissions []string
}

// UserAccess is one user who can see the ticket and why.
type UserAccess struct {
	UserID string
	// Direct lists permission names granting access outside any
	// membership: user-level any-scoped reads and synthetic action access.
	Direct    []string
	UserTeams []MembershipAccess
}

// Audience is the full recipient-relevant answer to "who can see this
// ticket".
type Audience struct {
	Users []UserAccess
}

// Resolver computes ticket visibility in both directions.
type Resolver struct {
	tickets   TicketRepository
	directory Directory
}

// NewResolver constructs the resolver.
func NewResolver(tickets TicketRepository, directory Directory) *Resolver {
	return &Resolver{tickets: tickets, directory: directory}
}

// AccessibleTickets returns every ticket the actor may see, each with the
// list of rules that matched it. The bundle is taken as-is; callers build
// it fresh per request.
func (r *Resolver) AccessibleTickets(ctx context.Context, actor domain.Actor) ([]TicketAccess, error) {
	rules := CollectRules(actor)
	if len(rules) == 0 {
		return nil, nil
	}

	relations, err := r.tickets.QueryByRules(ctx, rules, MatchAll(rules))
	if err != nil {
		return nil, err
	}

	out := make([]TicketAccess, 0, len(relations))
	for _, rel := range relations {
		access := TicketAccess{TicketID: rel.TicketID}
		for _, rule := range rules {
			if rule.Matches(rel) {
				access.Via = append(access.Via, rule)
			}
		}
		if len(access.Via) > 0 {
			out = append(out, access)
		}
	}
	return out, nil
}

// CanAccess reports whether the actor may see one ticket, with the rules
// that grant it.
func (r *Resolver) CanAccess(ctx context.Context, actor domain.Actor, ticketID string) ([]AccessRule, error) {
	rel, err := r.tickets.RelationsFor(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	var via []AccessRule
	for _, rule := range CollectRules(actor) {
		if rule.Matches(*rel) {
			via = append(via, rule)
		}
	}
	return via, nil
}

// WhoCanAccess is the dual of AccessibleTickets: given one ticket, it walks
// the user directory, collects each user's rules the same way, and tests
// them against the ticket's concrete ownership snapshot. Any ticket visible
// through AccessibleTickets appears here for the same actor, and vice
// versa.
func (r *Resolver) WhoCanAccess(ctx context.Context, ticketID string) (*Audience, error) {
	rel, err := r.tickets.RelationsFor(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}

	actors, err := r.directory.ListActors(ctx)
	if err != nil {
		return nil, err
	}

	audience := &Audience{}
	for _, actor := range actors {
		user := UserAccess{UserID: actor.UserID}
		byMembership := make(map[string]*MembershipAccess)

		for _, rule := range CollectRules(actor) {
			if !rule.Matches(*rel) {
				continue
			}
			key, teamID := membershipKey(rule, actor)
			if key == "" {
				user.Direct = append(user.Direct, rule.Permission.Raw)
				continue
			}
			entry, ok := byMembership[key]
			if !ok {
				entry = &MembershipAccess{UserTeamID: key, TeamID: teamID}
				byMembership[key] = entry
			}
			entry.GrantingPermissions = append(entry.GrantingPermissions, rule.Permission.Raw)
		}

		if len(user.Direct) == 0 && len(byMembership) == 0 {
			continue
		}

		for _, m := range actor.Teams {
			entry, ok := byMembership[m.UserTeamID]
			if !ok {
				continue
			}
			entityIDs, err := r.directory.MembershipEntityIDs(ctx, entry.TeamID, entry.UserTeamID)
			if err != nil {
				return nil, err
			}
			entry.EntityIDs = entityIDs
			user.UserTeams = append(user.UserTeams, *entry)
		}

		audience.Users = append(audience.Users, user)
	}

	return audience, nil
}

// membershipKey attributes a matched rule back to the membership it was
// collected through. Team-scoped rules bind by team id, self-scoped rules
// by membership id; any-scoped and synthetic rules have no membership.
func membershipKey(rule AccessRule, actor domain.Actor) (userTeamID, teamID string) {
	if rule.UserTeamID != "" {
		for _, m := range actor.Teams {
			if m.UserTeamID == rule.UserTeamID {
				return m.UserTeamID, m.TeamID
			}
		}
		return "", ""
	}
	if rule.TeamID != "" {
		for _, m := range actor.Teams {
			if m.TeamID == rule.TeamID {
				return m.UserTeamID, m.TeamID
			}
		}
	}
	return "", ""
}
