package identity

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ctrdhq/account-directory-server/internal/apperror"
	"github.com/ctrdhq/account-directory-server/internal/module/account"
)

type AuthMiddleware struct {
	service IdentityService
}

func NewAuthMiddleware(service IdentityService) *AuthMiddleware {
	return &AuthMiddleware{
		service: service,
	}
}

// bearerToken pulls the access token from the Authorization header,
// falling back to the session cookie for browser clients.
func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Cookies(AccessTokenCookie)
}

// RequireSession rejects requests without a valid access token and
// stores the authenticated account id for downstream handlers.
func (m *AuthMiddleware) RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return respondError(c, "Authentication required", apperror.Auth("missing access token"))
		}

		claims, err := m.service.ValidateAccessToken(c.Context(), token)
		if err != nil {
			return respondError(c, "Authentication required", err)
		}

		c.Locals(account.LocalsAccountID, claims.AccountID)
		return c.Next()
	}
}

// OptionalSession attaches the account id when a valid token is
// present but lets anonymous requests through.
func (m *AuthMiddleware) OptionalSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := bearerToken(c); token != "" {
			if claims, err := m.service.ValidateAccessToken(c.Context(), token); err == nil {
				c.Locals(account.LocalsAccountID, claims.AccountID)
			}
		}
		return c.Next()
	}
}
