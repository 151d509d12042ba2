package auth

import "github.com/luxwatch/storefront/internal/identity"

// Messages placed in Session.Error. Unknown handles and wrong secrets share
// MsgInvalidCredentials so login failures do not reveal which accounts exist.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgUserExists         = "User already exists"
	MsgInvalidOTP         = "Invalid verification code"
	MsgNoAccount          = "No account found with this email or phone"
	MsgHandleRequired     = "Email or phone is required"
	MsgResetNotVerified   = "Password reset has not been verified"
	MsgUnexpected         = "An unexpected error occurred"
)

// State is the session-level state of the manager.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
)

// Session is a snapshot of the process-wide session. Authenticated is true
// exactly when Identity is non-nil.
type Session struct {
	Identity      *identity.Identity `json:"user"`
	Authenticated bool               `json:"isAuthenticated"`
	Loading       bool               `json:"isLoading"`
	Error         string             `json:"error,omitempty"`
}

// State derives the state machine position from the snapshot.
func (s Session) State() State {
	switch {
	case s.Loading:
		return StateLoading
	case s.Authenticated:
		return StateAuthenticated
	default:
		return StateUnauthenticated
	}
}

func (s Session) clone() Session {
	if s.Identity != nil {
		id := *s.Identity
		s.Identity = &id
	}
	return s
}

// ResetPhase tracks the password reset hand-off.
type ResetPhase int

const (
	ResetRequested ResetPhase = iota + 1
	ResetVerified
	ResetCompleted
)

func (p ResetPhase) String() string {
	switch p {
	case ResetRequested:
		return "requested"
	case ResetVerified:
		return "verified"
	case ResetCompleted:
		return "completed"
	default:
		return "none"
	}
}

// PendingReset is a password reset awaiting OTP confirmation or a new password.
type PendingReset struct {
	Handle string
	Phase  ResetPhase
}

// OTPOutcome tells the caller which branch a successful verification took.
type OTPOutcome int

const (
	OTPRejected OTPOutcome = iota
	OTPSignupCompleted
	OTPResetVerified
)

func (o OTPOutcome) String() string {
	switch o {
	case OTPSignupCompleted:
		return "signup_completed"
	case OTPResetVerified:
		return "reset_verified"
	default:
		return "rejected"
	}
}
