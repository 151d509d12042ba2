package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/luxwatch/storefront/internal/auth"
	"github.com/luxwatch/storefront/internal/middleware"
)

// AuthLimits holds the optional middlewares of the auth group. Nil entries are skipped.
type AuthLimits struct {
	// Login throttles /auth/login.
	Login fiber.Handler
	// Replay serves repeated Idempotency-Key requests from cache. It only wraps the
	// steps that arm or consume a pending signup or reset; login and logout
	// always run against the live session.
	Replay fiber.Handler
}

// RegisterAuthRoutes wires the login, signup, verification and reset endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, src middleware.SessionSource, limits AuthLimits) {
	group := r.Group("/auth")
	group.Post("/login", chain(h.Login, limits.Login)...)
	group.Post("/signup", chain(h.SignUp, limits.Replay)...)
	group.Post("/verify-otp", chain(h.VerifyOTP, limits.Replay)...)
	group.Post("/reset-password", chain(h.ResetPassword, limits.Replay)...)
	group.Post("/set-password", h.SetPassword)
	group.Post("/change-password", middleware.RequireSession(src), h.ChangePassword)
	group.Post("/logout", h.Logout)
}

func chain(final fiber.Handler, mw ...fiber.Handler) []fiber.Handler {
	handlers := make([]fiber.Handler, 0, len(mw)+1)
	for _, m := range mw {
		if m != nil {
			handlers = append(handlers, m)
		}
	}
	return append(handlers, final)
}
