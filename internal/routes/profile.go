package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/luxwatch/storefront/internal/auth"
	"github.com/luxwatch/storefront/internal/identity"
	"github.com/luxwatch/storefront/internal/middleware"
)

// RegisterProfileRoutes wires the guarded pages.
func RegisterProfileRoutes(r fiber.Router, h *auth.Handler, src middleware.SessionSource) {
	r.Get("/profile", middleware.RequireSession(src), h.Profile)
	r.Get("/admin/session", middleware.RequireRole(src, identity.RoleAdmin), h.AdminSession)
}
