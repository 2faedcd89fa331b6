package domain

import "time"

// EntityOwnerKind discriminates what an entity stands in for.
type EntityOwnerKind string

const (
	OwnerKindTeam     EntityOwnerKind = "team"
	OwnerKindUserTeam EntityOwnerKind = "user_team"
	OwnerKindAPIKey   EntityOwnerKind = "api_key"
)

// Entity is the single polymorphic owner abstraction behind ticket
// assignment and creation. Exactly one of the three owner references is set
// on a valid row; tickets point at entities, never at teams or memberships
// directly, which is what lets "assigned to a team" and "assigned to one
// member of a team" share a foreign key.
type Entity struct {
	ID         string
	TeamID     *string
	UserTeamID *string
	APIKeyID   *string
	CreatedAt  time.Time
}

// OwnerRefCount counts how many owner references are populated. Valid rows
// have exactly one.
func (e Entity) OwnerRefCount() int {
	n := 0
	if e.TeamID != nil {
		n++
	}
	if e.UserTeamID != nil {
		n++
	}
	if e.APIKeyID != nil {
		n++
	}
	return n
}

// Valid reports whether the row satisfies the exactly-one-owner invariant.
func (e Entity) Valid() bool {
	return e.OwnerRefCount() == 1
}

// Owner returns the populated owner reference.
func (e Entity) Owner() (EntityOwnerKind, string) {
	switch {
	case e.TeamID != nil:
		return OwnerKindTeam, *e.TeamID
	case e.UserTeamID != nil:
		return OwnerKindUserTeam, *e.UserTeamID
	case e.APIKeyID != nil:
		return OwnerKindAPIKey, *e.APIKeyID
	}
	return "", ""
}
