package auth

import "github.com/spec-kit/helpdesk-service/internal/domain"

// Principal is the authenticated caller. Users carry a permission bundle
// rebuilt per request; machine callers additionally carry the entity that
// records their actions.
type Principal struct {
	Actor domain.Actor
	// APIKeyEntityID is set for machine callers only. User actions are
	// attributed through a membership entity instead.
	APIKeyEntityID string
}
