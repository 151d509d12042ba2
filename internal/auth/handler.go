package auth

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/luxwatch/storefront/internal/identity"
)

// Handler exposes the identity flow over HTTP.
type Handler struct {
	manager  *Manager
	validate *validator.Validate
}

// NewHandler builds an auth HTTP handler around manager.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager, validate: newValidator()}
}

type loginRequest struct {
	EmailOrPhone string `json:"emailOrPhone" validate:"required"`
	Password     string `json:"password" validate:"required"`
}

type signupRequest struct {
	Method          string `json:"method" validate:"required,oneof=email phone"`
	Email           string `json:"email" validate:"required_if=Method email,omitempty,email"`
	Phone           string `json:"phone" validate:"required_if=Method phone,omitempty,min=10"`
	FirstName       string `json:"firstName" validate:"required,min=2"`
	LastName        string `json:"lastName" validate:"required,min=2"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

type resetRequest struct {
	Method string `json:"method" validate:"required,oneof=email phone"`
	Email  string `json:"email" validate:"required_if=Method email,omitempty,email"`
	Phone  string `json:"phone" validate:"required_if=Method phone,omitempty,min=10"`
}

type verifyRequest struct {
	OTP string `json:"otp" validate:"required"`
}

type setPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=NewPassword"`
}

type sessionResponse struct {
	Success bool  `json:"success"`
	State   State `json:"state"`
	Session
	PendingSignup bool   `json:"pendingSignup"`
	PendingReset  string `json:"pendingReset,omitempty"`
}

type resultResponse struct {
	Success bool               `json:"success"`
	User    *identity.Identity `json:"user,omitempty"`
	Phase   string             `json:"resetPhase,omitempty"`
	Next    string             `json:"next,omitempty"`
}

// Session reports the current session state and whether a signup or reset is pending.
func (h *Handler) Session(c *fiber.Ctx) error {
	s := h.manager.Session()
	resp := sessionResponse{Success: true, State: s.State(), Session: s}
	_, resp.PendingSignup = h.manager.PendingSignup()
	if pending, ok := h.manager.PendingReset(); ok {
		resp.PendingReset = pending.Phase.String()
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// Profile returns the signed-in identity. Guarded by RequireSession.
func (h *Handler) Profile(c *fiber.Ctx) error {
	s := h.manager.Session()
	if s.Identity == nil {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}
	return c.Status(http.StatusOK).JSON(resultResponse{Success: true, User: s.Identity})
}

type adminSessionResponse struct {
	Success       bool    `json:"success"`
	State         State   `json:"state"`
	Session       Session `json:"session"`
	PendingSignup string  `json:"pendingSignupHandle,omitempty"`
	PendingReset  string  `json:"pendingResetHandle,omitempty"`
	ResetPhase    string  `json:"resetPhase,omitempty"`
}

// AdminSession shows the manager's full state including pending handles.
// Guarded by RequireRole(admin).
func (h *Handler) AdminSession(c *fiber.Ctx) error {
	s := h.manager.Session()
	resp := adminSessionResponse{Success: true, State: s.State(), Session: s}
	if req, ok := h.manager.PendingSignup(); ok {
		resp.PendingSignup = req.Handle.String()
	}
	if pending, ok := h.manager.PendingReset(); ok {
		resp.PendingReset = pending.Handle
		resp.ResetPhase = pending.Phase.String()
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// Login authenticates with an email or phone and password.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if reason := h.manager.login(c.UserContext(), req.EmailOrPhone, req.Password); reason != "" {
		return failed(reason)
	}
	return c.Status(http.StatusOK).JSON(resultResponse{Success: true, User: h.manager.Session().Identity, Next: "/"})
}

// SignUp starts a registration and sends a verification code.
func (h *Handler) SignUp(c *fiber.Ctx) error {
	var req signupRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if reason := h.manager.signUp(c.UserContext(), identity.SignUpRequest{
		Handle:    handleFor(req.Method, req.Email, req.Phone),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	}); reason != "" {
		return failed(reason)
	}
	return c.Status(http.StatusAccepted).JSON(resultResponse{Success: true, Next: "/verify-otp"})
}

// VerifyOTP confirms a pending signup or reset.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	outcome, reason := h.manager.verifyOTP(c.UserContext(), req.OTP)
	if reason != "" {
		return failed(reason)
	}
	if outcome == OTPSignupCompleted {
		return c.Status(http.StatusCreated).JSON(resultResponse{Success: true, User: h.manager.Session().Identity, Next: "/profile"})
	}
	return c.Status(http.StatusOK).JSON(resultResponse{Success: true, Next: "/set-password"})
}

// ResetPassword sends a verification code to a known email or phone.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req resetRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if reason := h.manager.resetPassword(c.UserContext(), handleFor(req.Method, req.Email, req.Phone).Value()); reason != "" {
		return failed(reason)
	}
	return c.Status(http.StatusAccepted).JSON(resultResponse{Success: true, Next: "/verify-otp"})
}

// SetPassword completes a verified reset.
func (h *Handler) SetPassword(c *fiber.Ctx) error {
	var req setPasswordRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	done, reason := h.manager.completeReset(c.UserContext(), req.Password)
	if reason != "" {
		return failed(reason)
	}
	return c.Status(http.StatusOK).JSON(resultResponse{Success: true, Phase: done.Phase.String(), Next: "/login"})
}

// ChangePassword updates the signed-in user's password.
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if reason := h.manager.changePassword(c.UserContext(), req.CurrentPassword, req.NewPassword); reason != "" {
		return failed(reason)
	}
	return c.Status(http.StatusOK).JSON(resultResponse{Success: true})
}

// Logout ends the session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	h.manager.Logout(c.UserContext())
	return c.Status(http.StatusOK).JSON(resultResponse{Success: true, Next: "/"})
}

func (h *Handler) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		return fiber.NewError(http.StatusBadRequest, describe(err))
	}
	return nil
}

// failed renders the reason returned by the operation itself. The shared
// Session.Error may already belong to a later request.
func failed(reason string) error {
	return fiber.NewError(statusFor(reason), reason)
}

func statusFor(msg string) int {
	switch msg {
	case MsgInvalidCredentials:
		return http.StatusUnauthorized
	case MsgUserExists:
		return http.StatusConflict
	case MsgNoAccount:
		return http.StatusNotFound
	case MsgUnexpected:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func handleFor(method, email, phone string) identity.Handle {
	if method == "phone" {
		return identity.ByPhone(phone)
	}
	return identity.ByEmail(email)
}
