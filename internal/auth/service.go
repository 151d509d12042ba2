package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luxwatch/storefront/internal/identity"
	"github.com/luxwatch/storefront/internal/logging"
	"github.com/luxwatch/storefront/internal/metrics"
	"github.com/luxwatch/storefront/internal/notification"
	"github.com/luxwatch/storefront/internal/session"
)

// DefaultLatency is the simulated round trip every identity operation waits for.
const DefaultLatency = time.Second

const (
	opRestore        = "restore"
	opLogin          = "login"
	opSignUp         = "signup"
	opVerifyOTP      = "verify_otp"
	opResetPassword  = "reset_password"
	opCompleteReset  = "complete_reset"
	opChangePassword = "change_password"
	opLogout         = "logout"
)

// Any six ASCII digits is accepted as a one-time code.
var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

// Manager owns the process-wide Session together with the pending signup and
// reset slots. It is the only writer of that state.
//
// Every operation waits once for the configured latency and then commits its
// state change under mu, so readers never see a half-applied update. Concurrent
// operations are not serialized against each other: the last commit wins.
type Manager struct {
	creds    identity.CredentialStore
	store    session.Store
	notifier notification.Notifier
	metrics  *metrics.AuthMetrics
	logger   *slog.Logger
	latency  time.Duration
	now      func() time.Time
	newID    func() string

	mu            sync.RWMutex
	session       Session
	pendingSignup *identity.SignUpRequest
	pendingReset  *PendingReset
}

// Option customizes a Manager.
type Option func(*Manager)

// WithNotifier routes user-facing notices and OTP deliveries to n.
func WithNotifier(n notification.Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithMetrics records operation outcomes on am.
func WithMetrics(am *metrics.AuthMetrics) Option {
	return func(m *Manager) { m.metrics = am }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithLatency overrides DefaultLatency. Zero disables the wait.
func WithLatency(d time.Duration) Option {
	return func(m *Manager) { m.latency = d }
}

// WithClock overrides time.Now for identity creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides how identities created by signup get their id.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// NewManager builds a manager in the Loading state. Call Restore before serving.
func NewManager(creds identity.CredentialStore, store session.Store, opts ...Option) *Manager {
	m := &Manager{
		creds:    creds,
		store:    store,
		notifier: notification.Discard{},
		logger:   logging.Discard(),
		latency:  DefaultLatency,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return "user-" + uuid.NewString() },
		session:  Session{Loading: true},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore moves the manager out of Loading, adopting the persisted snapshot when
// one is readable. Storage failures leave the session unauthenticated.
func (m *Manager) Restore(ctx context.Context) {
	start := time.Now()
	id, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("session restore failed", slog.Any("error", err))
		id = nil
	}
	m.commitSession(id)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	m.metrics.Observe(opRestore, outcome, time.Since(start))
	if id != nil {
		m.logger.Info("session restored", slog.String("user_id", id.ID), slog.String("role", string(id.Role)))
	}
}

// Session returns a copy of the current session.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.clone()
}

// PendingSignup returns the signup awaiting verification, if any.
func (m *Manager) PendingSignup() (identity.SignUpRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pendingSignup == nil {
		return identity.SignUpRequest{}, false
	}
	return *m.pendingSignup, true
}

// PendingReset returns the reset awaiting verification or a new password, if any.
func (m *Manager) PendingReset() (PendingReset, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pendingReset == nil {
		return PendingReset{}, false
	}
	return *m.pendingReset, true
}

// Login authenticates handle (email or phone) with secret.
func (m *Manager) Login(ctx context.Context, handle, secret string) bool {
	return m.login(ctx, handle, secret) == ""
}

// Each lowercase operation returns the reason it failed, or "" on success. The
// shared Session.Error slot may be overwritten by a later operation before the
// caller reads it, so callers that report per-request failures use the reason.
func (m *Manager) login(ctx context.Context, handle, secret string) (reason string) {
	start := m.begin()
	defer m.recoverPanic(ctx, opLogin, start, &reason)

	if err := m.wait(ctx); err != nil {
		return m.unexpected(ctx, opLogin, start, "Login failed", err)
	}

	cred, err := m.creds.FindByHandle(ctx, handle)
	if errors.Is(err, identity.ErrNotFound) || (err == nil && !cred.VerifySecret(secret)) {
		return m.reject(ctx, opLogin, start, MsgInvalidCredentials, failure("Login failed", "Invalid email/phone or password"))
	}
	if err != nil {
		return m.unexpected(ctx, opLogin, start, "Login failed", err)
	}

	id := cred.Identity()
	if err := m.store.Save(ctx, id); err != nil {
		return m.unexpected(ctx, opLogin, start, "Login failed", err)
	}
	m.commitSession(&id)

	return m.succeed(ctx, opLogin, start, notice("Login successful", fmt.Sprintf("Welcome back, %s!", id.FirstName)))
}

// SignUp arms a pending signup for OTP verification. It neither authenticates nor
// creates an identity. A newer request replaces an outstanding one.
func (m *Manager) SignUp(ctx context.Context, req identity.SignUpRequest) bool {
	return m.signUp(ctx, req) == ""
}

func (m *Manager) signUp(ctx context.Context, req identity.SignUpRequest) (reason string) {
	start := m.begin()
	defer m.recoverPanic(ctx, opSignUp, start, &reason)

	if err := m.wait(ctx); err != nil {
		return m.unexpected(ctx, opSignUp, start, "Signup failed", err)
	}
	if req.Handle.IsZero() {
		return m.reject(ctx, opSignUp, start, MsgHandleRequired, failure("Signup failed", MsgHandleRequired))
	}

	exists, err := m.creds.ExistsByHandle(ctx, req.Handle.Value())
	if err != nil {
		return m.unexpected(ctx, opSignUp, start, "Signup failed", err)
	}
	if exists {
		return m.reject(ctx, opSignUp, start, MsgUserExists, failure("Signup failed", "User with this email or phone already exists"))
	}

	pending := req
	m.mu.Lock()
	replaced := m.pendingSignup != nil
	m.pendingSignup = &pending
	m.pendingReset = nil
	m.mu.Unlock()
	if replaced {
		m.logger.Info("outstanding signup replaced", slog.String("channel", req.Handle.Kind().String()))
	}

	m.sendOTP(ctx, req.Handle.Value())
	return m.succeed(ctx, opSignUp, start, notification.Message{})
}

// VerifyOTP checks code against whichever pending operation is outstanding. On the
// signup branch it creates and authenticates the new identity; on the reset branch
// it only marks the reset as verified so the caller can ask for a new password.
func (m *Manager) VerifyOTP(ctx context.Context, code string) (OTPOutcome, bool) {
	outcome, reason := m.verifyOTP(ctx, code)
	return outcome, reason == ""
}

func (m *Manager) verifyOTP(ctx context.Context, code string) (outcome OTPOutcome, reason string) {
	start := m.begin()
	defer m.recoverPanic(ctx, opVerifyOTP, start, &reason)

	if err := m.wait(ctx); err != nil {
		return OTPRejected, m.unexpected(ctx, opVerifyOTP, start, "Verification failed", err)
	}

	m.mu.RLock()
	signup := m.pendingSignup
	m.mu.RUnlock()

	if !otpPattern.MatchString(code) {
		return OTPRejected, m.reject(ctx, opVerifyOTP, start, MsgInvalidOTP, failure("Verification failed", MsgInvalidOTP))
	}

	if signup != nil {
		id := identity.Identity{
			ID:        m.newID(),
			Email:     signup.Handle.Email(),
			Phone:     signup.Handle.Phone(),
			FirstName: signup.FirstName,
			LastName:  signup.LastName,
			Role:      identity.RoleUser,
			CreatedAt: m.now(),
		}
		if err := m.store.Save(ctx, id); err != nil {
			return OTPRejected, m.unexpected(ctx, opVerifyOTP, start, "Verification failed", err)
		}

		m.mu.Lock()
		m.session = Session{Identity: &id, Authenticated: true}
		if m.pendingSignup == signup {
			m.pendingSignup = nil
		}
		m.mu.Unlock()
		m.metrics.SetAuthenticated(true)

		m.logger.Info("account created", slog.String("user_id", id.ID))
		return OTPSignupCompleted, m.succeed(ctx, opVerifyOTP, start, notice("Account created", "Your account has been created successfully"))
	}

	if !m.markResetVerified() {
		return OTPRejected, m.reject(ctx, opVerifyOTP, start, MsgInvalidOTP, failure("Verification failed", MsgInvalidOTP))
	}
	return OTPResetVerified, m.succeed(ctx, opVerifyOTP, start, notice("OTP verified", "Please set your new password"))
}

// markResetVerified advances an outstanding reset to ResetVerified. It reports
// false when no reset is pending at commit time.
func (m *Manager) markResetVerified() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pendingReset == nil {
		return false
	}
	m.pendingReset.Phase = ResetVerified
	return true
}

// ResetPassword arms a pending reset for a known handle. The session is untouched.
func (m *Manager) ResetPassword(ctx context.Context, handle string) bool {
	return m.resetPassword(ctx, handle) == ""
}

func (m *Manager) resetPassword(ctx context.Context, handle string) (reason string) {
	start := m.begin()
	defer m.recoverPanic(ctx, opResetPassword, start, &reason)

	if err := m.wait(ctx); err != nil {
		return m.unexpected(ctx, opResetPassword, start, "Reset failed", err)
	}
	if handle == "" {
		return m.reject(ctx, opResetPassword, start, MsgHandleRequired, failure("Reset failed", MsgHandleRequired))
	}

	exists, err := m.creds.ExistsByHandle(ctx, handle)
	if err != nil {
		return m.unexpected(ctx, opResetPassword, start, "Reset failed", err)
	}
	if !exists {
		return m.reject(ctx, opResetPassword, start, MsgNoAccount, failure("Reset failed", MsgNoAccount))
	}

	m.mu.Lock()
	m.pendingReset = &PendingReset{Handle: handle, Phase: ResetRequested}
	m.pendingSignup = nil
	m.mu.Unlock()

	m.sendOTP(ctx, handle)
	return m.succeed(ctx, opResetPassword, start, notification.Message{})
}

// CompleteReset finishes a verified reset and clears it. Stored secrets are not
// modified; the credential store is read-only.
func (m *Manager) CompleteReset(ctx context.Context, newSecret string) bool {
	_, reason := m.completeReset(ctx, newSecret)
	return reason == ""
}

// completeReset returns the finished reset in phase ResetCompleted. The pending
// slot itself is cleared.
func (m *Manager) completeReset(ctx context.Context, newSecret string) (done PendingReset, reason string) {
	start := m.begin()
	defer m.recoverPanic(ctx, opCompleteReset, start, &reason)

	if err := m.wait(ctx); err != nil {
		return PendingReset{}, m.unexpected(ctx, opCompleteReset, start, "Password reset failed", err)
	}

	m.mu.Lock()
	if m.pendingReset == nil || m.pendingReset.Phase != ResetVerified {
		m.mu.Unlock()
		return PendingReset{}, m.reject(ctx, opCompleteReset, start, MsgResetNotVerified, failure("Password reset failed", MsgResetNotVerified))
	}
	done = PendingReset{Handle: m.pendingReset.Handle, Phase: ResetCompleted}
	m.pendingReset = nil
	m.mu.Unlock()

	m.logger.Info("password reset finished", slog.String("phase", done.Phase.String()))
	return done, m.succeed(ctx, opCompleteReset, start, notice("Password reset", "Your password has been reset successfully"))
}

// ChangePassword reports success without checking oldSecret or storing newSecret.
// TODO: validate oldSecret once the credential store gains a write path.
func (m *Manager) ChangePassword(ctx context.Context, oldSecret, newSecret string) bool {
	return m.changePassword(ctx, oldSecret, newSecret) == ""
}

func (m *Manager) changePassword(ctx context.Context, oldSecret, newSecret string) (reason string) {
	start := m.begin()
	defer m.recoverPanic(ctx, opChangePassword, start, &reason)

	if err := m.wait(ctx); err != nil {
		return m.unexpected(ctx, opChangePassword, start, "Password change failed", err)
	}
	return m.succeed(ctx, opChangePassword, start, notice("Password changed", "Your password has been updated successfully"))
}

// Logout clears the persisted snapshot and the session. It cannot fail; a store
// error is logged and the in-memory session is cleared regardless.
func (m *Manager) Logout(ctx context.Context) {
	start := time.Now()
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("clear session store", slog.Any("error", err))
	}
	m.commitSession(nil)
	m.succeed(ctx, opLogout, start, notice("Logged out", "You have been logged out successfully"))
}

// begin clears the previous error and returns the wall-clock start used for
// duration metrics. The injectable clock only stamps identities.
func (m *Manager) begin() time.Time {
	m.mu.Lock()
	m.session.Error = ""
	m.mu.Unlock()
	return time.Now()
}

// wait is the single suspension point of an operation.
func (m *Manager) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Manager) commitSession(id *identity.Identity) {
	m.mu.Lock()
	m.session = Session{Identity: id, Authenticated: id != nil}
	m.mu.Unlock()
	m.metrics.SetAuthenticated(id != nil)
}

func (m *Manager) setError(msg string) {
	m.mu.Lock()
	m.session.Error = msg
	m.mu.Unlock()
}

func (m *Manager) succeed(ctx context.Context, op string, start time.Time, msg notification.Message) string {
	if msg.Title != "" {
		m.notify(ctx, msg)
	}
	m.metrics.Observe(op, metrics.OutcomeSuccess, time.Since(start))
	return ""
}

func (m *Manager) reject(ctx context.Context, op string, start time.Time, reason string, msg notification.Message) string {
	m.setError(reason)
	m.notify(ctx, msg)
	m.metrics.Observe(op, metrics.OutcomeRejected, time.Since(start))
	return reason
}

func (m *Manager) unexpected(ctx context.Context, op string, start time.Time, title string, err error) string {
	m.logger.Error("identity operation failed", slog.String("operation", op), slog.Any("error", err))
	m.setError(MsgUnexpected)
	m.notify(ctx, failure(title, MsgUnexpected))
	m.metrics.Observe(op, metrics.OutcomeError, time.Since(start))
	return MsgUnexpected
}

func (m *Manager) recoverPanic(ctx context.Context, op string, start time.Time, reason *string) {
	if r := recover(); r != nil {
		*reason = m.unexpected(ctx, op, start, "Request failed", fmt.Errorf("panic: %v", r))
	}
}

func (m *Manager) sendOTP(ctx context.Context, destination string) {
	m.notify(ctx, notification.Message{
		Kind:        notification.KindOTP,
		Destination: destination,
		Title:       "OTP sent",
		Body:        "Please check your email/phone for the verification code",
	})
}

func (m *Manager) notify(ctx context.Context, msg notification.Message) {
	if err := m.notifier.Send(context.WithoutCancel(ctx), msg); err != nil {
		m.logger.Warn("notification failed", slog.String("title", msg.Title), slog.Any("error", err))
	}
}

func notice(title, body string) notification.Message {
	return notification.Message{Kind: notification.KindNotice, Title: title, Body: body}
}

func failure(title, body string) notification.Message {
	return notification.Message{Kind: notification.KindNotice, Title: title, Body: body, Failure: true}
}
