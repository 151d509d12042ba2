package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/luxwatch/storefront/internal/auth"
	"github.com/luxwatch/storefront/internal/identity"
)

const (
	// UserIDKey holds the authenticated identity id in fiber locals.
	UserIDKey = "user_id"
	// RoleKey holds the authenticated identity role in fiber locals.
	RoleKey = "role"
)

// SessionSource exposes the current session to route guards.
type SessionSource interface {
	Session() auth.Session
}

// RequireSession rejects requests unless the process-wide session is authenticated.
func RequireSession(src SessionSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := authenticated(src)
		if err != nil {
			return err
		}
		c.Locals(UserIDKey, id.ID)
		c.Locals(RoleKey, string(id.Role))
		return c.Next()
	}
}

// RequireRole is RequireSession plus a role check, used for the admin console.
func RequireRole(src SessionSource, role identity.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := authenticated(src)
		if err != nil {
			return err
		}
		if id.Role != role {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		c.Locals(UserIDKey, id.ID)
		c.Locals(RoleKey, string(id.Role))
		return c.Next()
	}
}

func authenticated(src SessionSource) (*identity.Identity, error) {
	s := src.Session()
	if s.Loading {
		return nil, fiber.NewError(http.StatusServiceUnavailable, "session is still loading")
	}
	if !s.Authenticated || s.Identity == nil {
		return nil, fiber.NewError(http.StatusUnauthorized, "authentication required")
	}
	return s.Identity, nil
}
