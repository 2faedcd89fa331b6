// Package access computes ticket visibility in both directions: which
// tickets an actor may see, and which actors may see a ticket. Both
// directions collect and match the same structured rules, so the two stay
// behaviorally consistent by construction.
package access

import (
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Relation names which ownership edge of a ticket a rule inspects.
type Relation string

const (
	RelationAssigned  Relation = "assigned"
	RelationCreatedBy Relation = "createdby"
	// RelationSynthetic marks implicit read access derived from an
	// any-scoped action permission: an actor allowed to act on every
	// ticket must be able to see every ticket.
	RelationSynthetic Relation = "synthetic"
)

// AccessRule is one concrete visibility rule extracted from an actor's
// permission bundle, bound to the team or membership it was granted
// through.
type AccessRule struct {
	Relation   Relation
	Scope      domain.PermissionScope
	TeamID     string // set for team-scoped rules
	UserTeamID string // set for self-scoped rules
	Permission domain.Permission
}

// TicketRelations is the ownership snapshot of one ticket: the effective
// team and membership behind its assigned and created-by entities. The team
// of an entity owned by a membership is that membership's team.
type TicketRelations struct {
	TicketID           string
	AssignedEntityID   *string
	AssignedTeamID     *string
	AssignedUserTeamID *string
	CreatedByEntityID  string
	CreatedTeamID      *string
	CreatedUserTeamID  *string
}

// CollectRules partitions an actor's permission bundle into access rules.
// User-level permissions contribute only any-scoped rules: a team- or
// self-scoped permission is meaningless without an owning membership to
// bind it to. Team and membership permissions bind to the membership they
// arrived through.
func CollectRules(actor domain.Actor) []AccessRule {
	var out []AccessRule

	for _, p := range actor.UserPermissions {
		if rule, ok := userLevelRule(p); ok {
			out = append(out, rule)
		}
	}

	for _, m := range actor.Teams {
		perms := make([]domain.Permission, 0, len(m.TeamPermissions)+len(m.MembershipPermissions))
		perms = append(perms, m.TeamPermissions...)
		perms = append(perms, m.MembershipPermissions...)
		for _, p := range perms {
			if rule, ok := membershipRule(p, m); ok {
				out = append(out, rule)
			}
		}
	}

	return out
}

func userLevelRule(p domain.Permission) (AccessRule, bool) {
	if !p.GrantsTicketReadAny() {
		return AccessRule{}, false
	}
	if p.Action == domain.ActionAction {
		return AccessRule{Relation: RelationSynthetic, Scope: domain.ScopeAny, Permission: p}, true
	}
	relation, ok := readRelation(p.Target)
	if !ok {
		return AccessRule{}, false
	}
	return AccessRule{Relation: relation, Scope: domain.ScopeAny, Permission: p}, true
}

func membershipRule(p domain.Permission, m domain.TeamMembership) (AccessRule, bool) {
	if p.Domain != "ticket" {
		return AccessRule{}, false
	}
	if p.Action == domain.ActionAction {
		if p.GrantsTicketReadAny() {
			return AccessRule{Relation: RelationSynthetic, Scope: domain.ScopeAny, Permission: p}, true
		}
		return AccessRule{}, false
	}
	if p.Action != domain.ActionRead {
		return AccessRule{}, false
	}
	relation, ok := readRelation(p.Target)
	if !ok {
		return AccessRule{}, false
	}

	rule := AccessRule{Relation: relation, Scope: p.Scope, Permission: p}
	switch p.Scope {
	case domain.ScopeAny:
	case domain.ScopeTeamAny, domain.ScopeTeamUnclaimed:
		rule.TeamID = m.TeamID
	case domain.ScopeSelf:
		rule.UserTeamID = m.UserTeamID
	default:
		return AccessRule{}, false
	}
	return rule, true
}

func readRelation(target string) (Relation, bool) {
	switch target {
	case domain.TargetAssigned:
		return RelationAssigned, true
	case domain.TargetCreatedBy:
		return RelationCreatedBy, true
	}
	return "", false
}

// Matches tests one rule against one ticket's ownership snapshot. This is
// the single source of truth for scope semantics; both resolver directions
// go through it.
func (r AccessRule) Matches(rel TicketRelations) bool {
	if r.Relation == RelationSynthetic {
		return true
	}

	var teamID, userTeamID *string
	switch r.Relation {
	case RelationAssigned:
		teamID, userTeamID = rel.AssignedTeamID, rel.AssignedUserTeamID
	case RelationCreatedBy:
		teamID, userTeamID = rel.CreatedTeamID, rel.CreatedUserTeamID
	default:
		return false
	}

	switch r.Scope {
	case domain.ScopeAny:
		return true
	case domain.ScopeTeamAny:
		return teamID != nil && *teamID == r.TeamID
	case domain.ScopeTeamUnclaimed:
		// team matches and no specific member holds the ticket
		return teamID != nil && *teamID == r.TeamID && userTeamID == nil
	case domain.ScopeSelf:
		return userTeamID != nil && *userTeamID == r.UserTeamID
	}
	return false
}

// MatchAll reports whether any rule in the set short-circuits to every
// ticket.
func MatchAll(rules []AccessRule) bool {
	for _, r := range rules {
		if r.Relation == RelationSynthetic {
			return true
		}
		if r.Scope == domain.ScopeAny {
			return true
		}
	}
	return false
}
