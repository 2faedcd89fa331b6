// Package change decides whether a proposed ticket field transition is
// permitted for an actor. The validator never mutates state; callers only
// write after it returns nil.
package change

import (
	"github.com/spec-kit/helpdesk-service/internal/access"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AssignmentRef locates an assignment endpoint: the entity plus its
// resolved team/membership coordinates. A nil ref means unassigned.
type AssignmentRef struct {
	EntityID   string
	TeamID     *string
	UserTeamID *string
}

// Validator evaluates transition policy against an actor's bundle.
type Validator struct{}

// NewValidator constructs the validator.
func NewValidator() *Validator {
	return &Validator{}
}

// CanChangeAssignment checks a claim or reassignment. The destination
// determines the relevant team; "unclaimed"-qualified permissions only
// apply while no specific member holds the ticket, "force" bypasses that
// check. Claim-class permissions only cover taking the ticket onto one of
// the actor's own memberships (or bare team); assign-class permissions
// cover arbitrary destinations.
func (v *Validator) CanChangeAssignment(actor domain.Actor, from, to *AssignmentRef) error {
	claimed := from != nil && from.UserTeamID != nil

	targetTeam := ""
	if to != nil && to.TeamID != nil {
		targetTeam = *to.TeamID
	} else if from != nil && from.TeamID != nil {
		targetTeam = *from.TeamID
	}

	selfDestination := to == nil ||
		(to.UserTeamID == nil && to.TeamID != nil && actor.MemberOfTeam(*to.TeamID)) ||
		(to.UserTeamID != nil && actor.HasMembership(*to.UserTeamID))

	for _, p := range actor.AllPermissions() {
		if p.Domain != "ticket" {
			continue
		}
		switch p.Action {
		case domain.ActionClaim:
			if !selfDestination {
				continue
			}
		case domain.ActionAssign:
		default:
			continue
		}
		if p.Scope == domain.ScopeTeam {
			if targetTeam == "" || !actor.MemberOfTeam(targetTeam) {
				continue
			}
		}
		if p.Qualifier == domain.QualifierUnclaimed && claimed {
			continue
		}
		return nil
	}

	required := "ticket:assign"
	if selfDestination {
		required = "ticket:claim"
	}
	return apperrors.NewPermissionError(required, "ticket", map[string]any{
		"claimed": claimed,
	})
}

// CanChangeField checks a category, priority or status transition. The
// actor needs a ticket:action permission for the field whose scope covers
// the ticket's current assignment or creation relationship to them.
func (v *Validator) CanChangeField(actor domain.Actor, rel access.TicketRelations, field domain.ChangeField, from, to string) error {
	target, ok := actionTarget(field)
	if !ok {
		return apperrors.NewValidationError("unknown change field", map[string]any{"field": field})
	}

	// Reopening a closed ticket is an unlock: only any-scoped status
	// permission covers it.
	requireAny := field == domain.ChangeFieldStatus && from == string(domain.TicketStatusClosed)

	for _, m := range actor.Teams {
		perms := append(append([]domain.Permission{}, m.TeamPermissions...), m.MembershipPermissions...)
		for _, p := range perms {
			if actionPermits(p, target, requireAny, &m, rel) {
				return nil
			}
		}
	}
	for _, p := range actor.UserPermissions {
		if actionPermits(p, target, requireAny, nil, rel) {
			return nil
		}
	}

	return apperrors.NewPermissionError("ticket:action:"+target, "ticket", map[string]any{
		"from": from,
		"to":   to,
	})
}

func actionPermits(p domain.Permission, target string, requireAny bool, m *domain.TeamMembership, rel access.TicketRelations) bool {
	if p.Domain != "ticket" || p.Action != domain.ActionAction || p.Target != target {
		return false
	}
	switch p.Scope {
	case domain.ScopeAny:
		return true
	case domain.ScopeTeam:
		if requireAny || m == nil {
			return false
		}
		return matchTeam(rel.AssignedTeamID, m.TeamID) || matchTeam(rel.CreatedTeamID, m.TeamID)
	case domain.ScopeSelf:
		if requireAny || m == nil {
			return false
		}
		return matchTeam(rel.AssignedUserTeamID, m.UserTeamID) || matchTeam(rel.CreatedUserTeamID, m.UserTeamID)
	}
	return false
}

func matchTeam(got *string, want string) bool {
	return got != nil && *got == want
}

func actionTarget(field domain.ChangeField) (string, bool) {
	switch field {
	case domain.ChangeFieldCategory:
		return domain.TargetCategory, true
	case domain.ChangeFieldPriority:
		return domain.TargetPriority, true
	case domain.ChangeFieldStatus:
		return domain.TargetStatus, true
	}
	return "", false
}
