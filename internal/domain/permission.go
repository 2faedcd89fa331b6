package domain

import "strings"

// PermissionScope narrows a permission to a slice of the ownership graph.
type PermissionScope string

const (
	ScopeAny           PermissionScope = "any"
	ScopeTeamAny       PermissionScope = "team:any"
	ScopeTeamUnclaimed PermissionScope = "team:unclaimed"
	ScopeSelf          PermissionScope = "self"
	ScopeTeam          PermissionScope = "team"
)

// PermissionQualifier refines claim/assign permissions.
type PermissionQualifier string

const (
	QualifierNone      PermissionQualifier = ""
	QualifierForce     PermissionQualifier = "force"
	QualifierUnclaimed PermissionQualifier = "unclaimed"
)

// Permission action verbs.
const (
	ActionRead   = "read"
	ActionAction = "action"
	ActionClaim  = "claim"
	ActionAssign = "assign"
	ActionView   = "view"
)

// Permission targets (the relation or field the action applies to).
const (
	TargetAssigned   = "assigned"
	TargetCreatedBy  = "createdby"
	TargetStatus     = "status"
	TargetPriority   = "priority"
	TargetCategory   = "category"
	TargetAssignment = "assignment"
)

// Permission is the structured form of a colon-delimited permission string
// such as "ticket:read:assigned:team:any" or "ticket:claim:any:unclaimed".
// Strings are parsed exactly once, when the actor bundle is built; everything
// downstream matches on fields instead of prefixes.
type Permission struct {
	Domain    string
	Action    string
	Target    string
	Scope     PermissionScope
	Qualifier PermissionQualifier

	// Raw keeps the original string for provenance reporting and error
	// messages.
	Raw string
}

// ParsePermission decodes a permission string. Strings that do not fit the
// grammar come back with ok=false and are ignored by the resolvers rather
// than granting anything.
func ParsePermission(raw string) (Permission, bool) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 3 {
		return Permission{}, false
	}

	p := Permission{Domain: parts[0], Action: parts[1], Raw: raw}

	switch p.Action {
	case ActionRead, ActionAction:
		// ticket:read:<target>:<scope...> / ticket:action:<target>:<scope...>
		p.Target = parts[2]
		scope, ok := parseScope(parts[3:])
		if !ok {
			return Permission{}, false
		}
		p.Scope = scope
	case ActionClaim, ActionAssign:
		// ticket:claim:<any|team>:<force|unclaimed>
		if len(parts) != 4 {
			return Permission{}, false
		}
		switch parts[2] {
		case "any":
			p.Scope = ScopeAny
		case "team":
			p.Scope = ScopeTeam
		default:
			return Permission{}, false
		}
		switch parts[3] {
		case "force":
			p.Qualifier = QualifierForce
		case "unclaimed":
			p.Qualifier = QualifierUnclaimed
		default:
			return Permission{}, false
		}
	case ActionView:
		// category:view:any
		if len(parts) != 3 || parts[2] != "any" {
			return Permission{}, false
		}
		p.Scope = ScopeAny
	default:
		return Permission{}, false
	}

	return p, true
}

func parseScope(parts []string) (PermissionScope, bool) {
	switch len(parts) {
	case 1:
		switch parts[0] {
		case "any":
			return ScopeAny, true
		case "self":
			return ScopeSelf, true
		case "team":
			return ScopeTeam, true
		}
	case 2:
		if parts[0] != "team" {
			return "", false
		}
		switch parts[1] {
		case "any":
			return ScopeTeamAny, true
		case "unclaimed":
			return ScopeTeamUnclaimed, true
		}
	}
	return "", false
}

// ParsePermissions decodes a list, dropping entries that do not parse.
func ParsePermissions(raws []string) []Permission {
	parsed := make([]Permission, 0, len(raws))
	for _, raw := range raws {
		if p, ok := ParsePermission(raw); ok {
			parsed = append(parsed, p)
		}
	}
	return parsed
}

// GrantsTicketReadAny reports whether the permission implies read access to
// every ticket. Any "ticket:action:*:any" permission does: an actor allowed
// to act on anything must be able to see it.
func (p Permission) GrantsTicketReadAny() bool {
	if p.Domain != "ticket" {
		return false
	}
	if p.Action == ActionRead && p.Scope == ScopeAny {
		return true
	}
	return p.Action == ActionAction && p.Scope == ScopeAny
}
