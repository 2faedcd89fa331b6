package dto

import "github.com/spec-kit/helpdesk-service/internal/access"

// AccessEntry is one accessible ticket with the permissions granting it.
type AccessEntry struct {
	TicketID  string   `json:"ticket_id"`
	AccessVia []string `json:"access_via"`
}

// AccessEntriesFromDomain maps resolver output, deduplicating the granting
// permission names per ticket.
func AccessEntriesFromDomain(accesses []access.TicketAccess) []AccessEntry {
	entries := make([]AccessEntry, 0, len(accesses))
	for _, a := range accesses {
		seen := make(map[string]struct{}, len(a.Via))
		via := make([]string, 0, len(a.Via))
		for _, rule := range a.Via {
			name := rule.Permission.Raw
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			via = append(via, name)
		}
		entries = append(entries, AccessEntry{TicketID: a.TicketID, AccessVia: via})
	}
	return entries
}

// MembershipAudience is the per-membership breakdown of one audience user.
type MembershipAudience struct {
	UserTeamID          string   `json:"user_team_id"`
	TeamID              string   `json:"team_id"`
	EntityIDs           []string `json:"entity_ids"`
	GrantingPermissions []string `json:"granting_permissions"`
}

// AudienceUser is one user who can see the ticket.
type AudienceUser struct {
	UserID    string               `json:"user_id"`
	Direct    []string             `json:"direct,omitempty"`
	UserTeams []MembershipAudience `json:"user_teams"`
}

// AudienceResponse answers who can see a ticket.
type AudienceResponse struct {
	Users []AudienceUser `json:"users"`
}

// AudienceFromDomain maps resolver output.
func AudienceFromDomain(a *access.Audience) AudienceResponse {
	users := make([]AudienceUser, 0, len(a.Users))
	for _, u := range a.Users {
		memberships := make([]MembershipAudience, 0, len(u.UserTeams))
		for _, m := range u.UserTeams {
			memberships = append(memberships, MembershipAudience{
				UserTeamID:          m.UserTeamID,
				TeamID:              m.TeamID,
				EntityIDs:           m.EntityIDs,
				GrantingPermissions: m.GrantingPermissions,
			})
		}
		users = append(users, AudienceUser{UserID: u.UserID, Direct: u.Direct, UserTeams: memberships})
	}
	return AudienceResponse{Users: users}
}
