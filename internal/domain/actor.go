package domain

// TeamMembership is one user-team row with the two permission sets that
// apply through it: the team's own permissions and the membership's.
type TeamMembership struct {
	UserTeamID            string
	TeamID                string
	TeamPermissions       []Permission
	MembershipPermissions []Permission
}

// Actor is the request-scoped authority bundle for a caller. It is rebuilt
// from current user/team/user-team rows on every request and never cached,
// so a revoked membership loses effect immediately.
type Actor struct {
	UserID          string
	UserPermissions []Permission
	Teams           []TeamMembership
}

// AllPermissions flattens the bundle: user-level permissions plus both sets
// from every membership.
func (a Actor) AllPermissions() []Permission {
	out := make([]Permission, 0, len(a.UserPermissions))
	out = append(out, a.UserPermissions...)
	for _, m := range a.Teams {
		out = append(out, m.TeamPermissions...)
		out = append(out, m.MembershipPermissions...)
	}
	return out
}

// TeamIDs lists the distinct team ids the actor belongs to.
func (a Actor) TeamIDs() []string {
	seen := make(map[string]struct{}, len(a.Teams))
	ids := make([]string, 0, len(a.Teams))
	for _, m := range a.Teams {
		if _, ok := seen[m.TeamID]; ok {
			continue
		}
		seen[m.TeamID] = struct{}{}
		ids = append(ids, m.TeamID)
	}
	return ids
}

// MemberOfTeam reports whether the actor has a membership in the team.
func (a Actor) MemberOfTeam(teamID string) bool {
	for _, m := range a.Teams {
		if m.TeamID == teamID {
			return true
		}
	}
	return false
}

// HasMembership reports whether the actor owns the given user-team.
func (a Actor) HasMembership(userTeamID string) bool {
	for _, m := range a.Teams {
		if m.UserTeamID == userTeamID {
			return true
		}
	}
	return false
}
