package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/entity"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// AuthMiddleware authenticates callers and builds their permission bundle.
// Bearer tokens identify users; the X-Api-Key header, formatted
// "<id>.<secret>", identifies machine callers.
type AuthMiddleware struct {
	tokens    *TokenManager
	directory repository.DirectoryRepository
	apiKeys   repository.APIKeyRepository
	entities  *entity.Resolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, directory repository.DirectoryRepository, apiKeys repository.APIKeyRepository, entities *entity.Resolver) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, directory: directory, apiKeys: apiKeys, entities: entities}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if key := c.Get("X-Api-Key"); key != "" {
		return m.handleAPIKey(c, key)
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing credentials")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	actor, err := m.directory.GetActor(c.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, &Principal{Actor: *actor})
	return c.Next()
}

func (m *AuthMiddleware) handleAPIKey(c *fiber.Ctx, raw string) error {
	id, secret, found := strings.Cut(raw, ".")
	if !found || id == "" || secret == "" {
		return apperrors.NewUnauthorized("invalid api key")
	}

	key, err := m.apiKeys.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("invalid api key")
		}
		return apperrors.MapError(err)
	}
	if !key.Active || CompareSecret(key.SecretHash, secret) != nil {
		return apperrors.NewUnauthorized("invalid api key")
	}

	entityID, err := m.entities.Resolve(c.Context(), domain.OwnerKindAPIKey, key.ID)
	if err != nil {
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, &Principal{
		Actor: domain.Actor{
			UserPermissions: domain.ParsePermissions(key.Permissions),
		},
		APIKeyEntityID: entityID,
	})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
