package domain

import "time"

// APIKey is a machine caller. Its secret is stored hashed; its permission
// strings follow the same grammar as user permissions, though only
// any-scoped permissions can ever apply since a key has no memberships.
type APIKey struct {
	ID          string
	Name        string
	SecretHash  string
	Permissions []string
	Active      bool
	CreatedAt   time.Time
}
