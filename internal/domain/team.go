package domain

import "time"

// Team groups agents and carries team-level permission grants.
type Team struct {
	ID          string
	Name        string
	Permissions []string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserTeam is one user's membership in a team. Memberships carry their own
// permission grants on top of the team's.
type UserTeam struct {
	ID          string
	UserID      string
	TeamID      string
	Permissions []string
	Active      bool
	CreatedAt   time.Time
}

// User is the notification-addressable person behind memberships.
type User struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Permissions  []string
	CreatedAt    time.Time
}
