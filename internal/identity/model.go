package identity

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role determines which storefront areas an identity may reach.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

var (
	// ErrNotFound is returned by credential stores when no record matches a handle.
	ErrNotFound = errors.New("identity not found")
	// ErrEmptyHandle is returned when an email or phone handle is blank.
	ErrEmptyHandle = errors.New("email or phone is required")
)

// Identity is a registered account as surfaced to the rest of the application.
// It never carries a secret, which makes it safe to persist as a session snapshot.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	Avatar    string    `json:"avatar,omitempty"`
}

// Validate checks the shape required for an identity to be restored from storage.
func (i Identity) Validate() error {
	if i.ID == "" {
		return errors.New("identity id is empty")
	}
	if !i.Role.Valid() {
		return errors.New("identity role is invalid")
	}
	if i.Email == "" && i.Phone == "" {
		return errors.New("identity has neither email nor phone")
	}
	return nil
}

// IsAdmin reports whether the identity may use the admin console.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Matches reports whether handle equals the identity's email or phone.
func (i Identity) Matches(handle string) bool {
	if handle == "" {
		return false
	}
	return (i.Email != "" && i.Email == handle) || (i.Phone != "" && i.Phone == handle)
}

// Credential pairs an Identity with its secret hash. The hash is unexported so it
// cannot be serialized or read outside this package.
type Credential struct {
	identity   Identity
	secretHash []byte
}

// NewCredential builds a credential from an identity and a bcrypt hash.
func NewCredential(id Identity, secretHash []byte) Credential {
	return Credential{identity: id, secretHash: secretHash}
}

// Identity returns the credential's identity with the secret stripped.
func (c Credential) Identity() Identity {
	return c.identity
}

// VerifySecret reports whether secret equals the stored one.
func (c Credential) VerifySecret(secret string) bool {
	if len(c.secretHash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(c.secretHash, []byte(secret)) == nil
}

// HandleKind tags which login handle a Handle holds.
type HandleKind int

const (
	HandleEmail HandleKind = iota + 1
	HandlePhone
)

func (k HandleKind) String() string {
	switch k {
	case HandleEmail:
		return "email"
	case HandlePhone:
		return "phone"
	default:
		return "unknown"
	}
}

// Handle is either an email or a phone number, never both.
type Handle struct {
	kind  HandleKind
	value string
}

// ByEmail builds an email handle.
func ByEmail(email string) Handle {
	return Handle{kind: HandleEmail, value: strings.TrimSpace(email)}
}

// ByPhone builds a phone handle.
func ByPhone(phone string) Handle {
	return Handle{kind: HandlePhone, value: strings.TrimSpace(phone)}
}

// ParseHandle classifies free-form input: anything containing "@" is an email,
// everything else a phone number.
func ParseHandle(raw string) (Handle, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Handle{}, ErrEmptyHandle
	}
	if strings.Contains(raw, "@") {
		return ByEmail(raw), nil
	}
	return ByPhone(raw), nil
}

func (h Handle) Kind() HandleKind { return h.kind }
func (h Handle) Value() string    { return h.value }
func (h Handle) IsZero() bool     { return h.kind == 0 || h.value == "" }
func (h Handle) String() string   { return h.value }

// Email returns the email when the handle is an email handle.
func (h Handle) Email() string {
	if h.kind == HandleEmail {
		return h.value
	}
	return ""
}

// Phone returns the phone when the handle is a phone handle.
func (h Handle) Phone() string {
	if h.kind == HandlePhone {
		return h.value
	}
	return ""
}

// SignUpRequest is a registration awaiting OTP confirmation.
type SignUpRequest struct {
	Handle    Handle
	FirstName string
	LastName  string
	Password  string
}
