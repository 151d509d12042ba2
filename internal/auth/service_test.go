package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/luxwatch/storefront/internal/identity"
	"github.com/luxwatch/storefront/internal/logging"
	"github.com/luxwatch/storefront/internal/metrics"
	"github.com/luxwatch/storefront/internal/notification"
	"github.com/luxwatch/storefront/internal/session"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (r *recordingNotifier) Send(_ context.Context, msg notification.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingNotifier) last() notification.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return notification.Message{}
	}
	return r.messages[len(r.messages)-1]
}

type brokenStore struct {
	session.Store
	saveErr  error
	loadErr  error
	clearErr error
}

func (b brokenStore) Save(ctx context.Context, id identity.Identity) error {
	if b.saveErr != nil {
		return b.saveErr
	}
	return b.Store.Save(ctx, id)
}

func (b brokenStore) Load(ctx context.Context) (*identity.Identity, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.Store.Load(ctx)
}

func (b brokenStore) Clear(ctx context.Context) error {
	if b.clearErr != nil {
		return b.clearErr
	}
	return b.Store.Clear(ctx)
}

type brokenCreds struct{ err error }

func (b brokenCreds) FindByHandle(context.Context, string) (identity.Credential, error) {
	return identity.Credential{}, b.err
}

func (b brokenCreds) ExistsByHandle(context.Context, string) (bool, error) {
	return false, b.err
}

type panickyCreds struct{}

func (panickyCreds) FindByHandle(context.Context, string) (identity.Credential, error) {
	panic("boom")
}

func (panickyCreds) ExistsByHandle(context.Context, string) (bool, error) {
	panic("boom")
}

func newTestManager(t *testing.T, store session.Store, opts ...Option) (*Manager, *recordingNotifier) {
	t.Helper()
	creds, err := identity.NewFixtureStore()
	if err != nil {
		t.Fatalf("fixture store: %v", err)
	}
	if store == nil {
		store = session.NewMemoryStore()
	}
	notes := &recordingNotifier{}
	base := []Option{WithLatency(0), WithNotifier(notes), WithLogger(logging.Discard())}
	m := NewManager(creds, store, append(base, opts...)...)
	m.Restore(context.Background())
	return m, notes
}

func emailSignup(email string) identity.SignUpRequest {
	return identity.SignUpRequest{Handle: identity.ByEmail(email), FirstName: "A", LastName: "B", Password: "secret1"}
}

func TestNewManagerStartsLoading(t *testing.T) {
	creds, _ := identity.NewFixtureStore()
	m := NewManager(creds, session.NewMemoryStore(), WithLatency(0))
	if m.Session().State() != StateLoading {
		t.Fatalf("expected loading before restore, got %s", m.Session().State())
	}
	m.Restore(context.Background())
	s := m.Session()
	if s.State() != StateUnauthenticated || s.Loading {
		t.Fatalf("expected unauthenticated after empty restore, got %+v", s)
	}
}

func TestLoginSucceedsForEveryFixture(t *testing.T) {
	ctx := context.Background()
	for _, rec := range identity.DefaultFixtures() {
		for _, handle := range []string{rec.Identity.Email, rec.Identity.Phone} {
			store := session.NewMemoryStore()
			m, notes := newTestManager(t, store)

			if !m.Login(ctx, handle, rec.Password) {
				t.Fatalf("login %s: expected success, error=%q", handle, m.Session().Error)
			}
			s := m.Session()
			if s.State() != StateAuthenticated || s.Identity.ID != rec.Identity.ID {
				t.Fatalf("login %s: unexpected session %+v", handle, s)
			}

			persisted, err := store.Load(ctx)
			if err != nil || persisted == nil || persisted.ID != rec.Identity.ID {
				t.Fatalf("login %s: expected persisted snapshot, got %v %v", handle, persisted, err)
			}
			if want := "Welcome back, " + rec.Identity.FirstName + "!"; notes.last().Body != want {
				t.Fatalf("expected notice %q, got %q", want, notes.last().Body)
			}
		}
	}
}

func TestLoginWrongSecretAndUnknownHandleShareMessage(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil)

	if m.Login(ctx, "admin@gmail.com", "wrong") {
		t.Fatalf("expected wrong secret to fail")
	}
	wrongSecret := m.Session()
	if wrongSecret.State() != StateUnauthenticated || wrongSecret.Error != MsgInvalidCredentials {
		t.Fatalf("unexpected session after wrong secret: %+v", wrongSecret)
	}

	if m.Login(ctx, "nobody@x.com", "admin123") {
		t.Fatalf("expected unknown handle to fail")
	}
	if m.Session().Error != wrongSecret.Error {
		t.Fatalf("unknown handle message %q differs from wrong secret %q", m.Session().Error, wrongSecret.Error)
	}
}

func TestAdminScenario(t *testing.T) {
	ctx := context.Background()
	creds, err := identity.NewFixtureStore(identity.FixtureRecord{
		Identity: identity.Identity{ID: "a1", Email: "admin@x.com", FirstName: "Ada", LastName: "Min", Role: identity.RoleAdmin},
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("fixture store: %v", err)
	}

	m := NewManager(creds, session.NewMemoryStore(), WithLatency(0))
	m.Restore(ctx)
	if !m.Login(ctx, "admin@x.com", "admin123") {
		t.Fatalf("expected admin login")
	}
	if m.Session().Identity.Role != identity.RoleAdmin {
		t.Fatalf("expected admin role")
	}

	fresh := NewManager(creds, session.NewMemoryStore(), WithLatency(0))
	fresh.Restore(ctx)
	if fresh.Login(ctx, "admin@x.com", "wrong") {
		t.Fatalf("expected failure")
	}
	if s := fresh.Session(); s.Error != "Invalid credentials" || s.Authenticated {
		t.Fatalf("unexpected session %+v", s)
	}
}

func TestLoginClearsPreviousError(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil)
	m.Login(ctx, "admin@gmail.com", "nope")
	if m.Session().Error == "" {
		t.Fatalf("expected error after failed login")
	}
	if !m.Login(ctx, "admin@gmail.com", "admin123") {
		t.Fatalf("expected success")
	}
	if m.Session().Error != "" {
		t.Fatalf("expected error cleared, got %q", m.Session().Error)
	}
}

func TestSignUpExistingHandleIsRejected(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil)

	for _, req := range []identity.SignUpRequest{
		emailSignup("admin@gmail.com"),
		{Handle: identity.ByPhone("+0987654321"), FirstName: "J", LastName: "D", Password: "secret1"},
	} {
		if m.SignUp(ctx, req) {
			t.Fatalf("expected duplicate %s to fail", req.Handle)
		}
		if m.Session().Error != MsgUserExists {
			t.Fatalf("expected %q, got %q", MsgUserExists, m.Session().Error)
		}
		if _, ok := m.PendingSignup(); ok {
			t.Fatalf("duplicate signup must not arm a pending signup")
		}
	}
}

func TestSignUpThenVerifyScenario(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	m, notes := newTestManager(t, store)

	if !m.SignUp(ctx, emailSignup("new@x.com")) {
		t.Fatalf("signup: %q", m.Session().Error)
	}
	if _, ok := m.PendingSignup(); !ok {
		t.Fatalf("expected pending signup")
	}
	if m.Session().State() != StateUnauthenticated {
		t.Fatalf("signup alone must not authenticate")
	}
	if otp := notes.last(); otp.Kind != notification.KindOTP || otp.Destination != "new@x.com" {
		t.Fatalf("expected OTP delivery to new@x.com, got %+v", otp)
	}

	if outcome, ok := m.VerifyOTP(ctx, "12345"); ok || outcome != OTPRejected {
		t.Fatalf("five digits must be rejected")
	}
	if m.Session().Error != MsgInvalidOTP || m.Session().Authenticated {
		t.Fatalf("unexpected session after bad code: %+v", m.Session())
	}
	if _, ok := m.PendingSignup(); !ok {
		t.Fatalf("pending signup must survive a rejected code")
	}

	outcome, ok := m.VerifyOTP(ctx, "123456")
	if !ok || outcome != OTPSignupCompleted {
		t.Fatalf("expected signup completion, got %s %v", outcome, ok)
	}
	s := m.Session()
	if !s.Authenticated || s.Identity.Email != "new@x.com" || s.Identity.Role != identity.RoleUser {
		t.Fatalf("unexpected session %+v", s)
	}
	if s.Identity.Phone != "" || s.Identity.FirstName != "A" || s.Identity.LastName != "B" {
		t.Fatalf("identity fields not copied from signup: %+v", s.Identity)
	}
	if _, ok := m.PendingSignup(); ok {
		t.Fatalf("pending signup should be cleared after verification")
	}

	persisted, _ := store.Load(ctx)
	if persisted == nil || persisted.ID != s.Identity.ID {
		t.Fatalf("expected new identity persisted, got %+v", persisted)
	}
}

func TestVerifyOTPAcceptanceRule(t *testing.T) {
	ctx := context.Background()
	cases := map[string]bool{
		"123456":   true,
		"000000":   true,
		"12345":    false,
		"1234567":  false,
		"12a456":   false,
		"12 456":   false,
		"123456\n": false,
		"١٢٣٤٥٦":   false,
		"":         false,
	}
	for code, want := range cases {
		m, _ := newTestManager(t, nil)
		if !m.SignUp(ctx, emailSignup("fresh@x.com")) {
			t.Fatalf("signup failed")
		}
		if _, got := m.VerifyOTP(ctx, code); got != want {
			t.Fatalf("code %q: expected %v, got %v", code, want, got)
		}
	}
}

func TestVerifyOTPWithoutPendingFails(t *testing.T) {
	m, _ := newTestManager(t, nil)
	if _, ok := m.VerifyOTP(context.Background(), "123456"); ok {
		t.Fatalf("expected failure with nothing pending")
	}
	if m.Session().Error != MsgInvalidOTP {
		t.Fatalf("expected %q, got %q", MsgInvalidOTP, m.Session().Error)
	}
}

func TestSecondSignUpReplacesPending(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil)
	m.SignUp(ctx, emailSignup("first@x.com"))
	m.SignUp(ctx, identity.SignUpRequest{Handle: identity.ByPhone("+4400000000"), FirstName: "C", LastName: "D", Password: "secret2"})

	pending, ok := m.PendingSignup()
	if !ok || pending.Handle.Phone() != "+4400000000" {
		t.Fatalf("expected the latest signup to win, got %+v", pending)
	}
	if _, ok := m.VerifyOTP(ctx, "654321"); !ok {
		t.Fatalf("verify failed")
	}
	if id := m.Session().Identity; id.Phone != "+4400000000" || id.Email != "" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestResetPasswordFlow(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil)

	if m.ResetPassword(ctx, "ghost@x.com") {
		t.Fatalf("unknown handle must fail")
	}
	if _, ok := m.PendingReset(); ok {
		t.Fatalf("unknown handle must not arm a reset")
	}
	if m.Session().Error != MsgNoAccount {
		t.Fatalf("expected %q, got %q", MsgNoAccount, m.Session().Error)
	}

	if !m.ResetPassword(ctx, "+1234567890") {
		t.Fatalf("known handle should succeed: %q", m.Session().Error)
	}
	pending, ok := m.PendingReset()
	if !ok || pending.Phase != ResetRequested || pending.Handle != "+1234567890" {
		t.Fatalf("unexpected pending reset %+v", pending)
	}
	if m.Session().State() != StateUnauthenticated {
		t.Fatalf("reset must not touch the session")
	}

	if m.CompleteReset(ctx, "newsecret") {
		t.Fatalf("completing before verification must fail")
	}

	outcome, ok := m.VerifyOTP(ctx, "111111")
	if !ok || outcome != OTPResetVerified {
		t.Fatalf("expected reset verification, got %s %v", outcome, ok)
	}
	if m.Session().Authenticated {
		t.Fatalf("reset verification must not authenticate")
	}
	if pending, ok := m.PendingReset(); !ok || pending.Phase != ResetVerified {
		t.Fatalf("pending reset should remain, verified: %+v", pending)
	}

	if !m.CompleteReset(ctx, "newsecret") {
		t.Fatalf("complete reset: %q", m.Session().Error)
	}
	if _, ok := m.PendingReset(); ok {
		t.Fatalf("pending reset should be cleared after completion")
	}
	// secrets are untouched by the reset
	if !m.Login(ctx, "+1234567890", "admin123") {
		t.Fatalf("original secret should still work")
	}
}

func TestArmingOnePendingClearsTheOther(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil)
	m.SignUp(ctx, emailSignup("new@x.com"))
	m.ResetPassword(ctx, "user@example.com")

	if _, ok := m.PendingSignup(); ok {
		t.Fatalf("reset request should drop the pending signup")
	}
	if outcome, _ := m.VerifyOTP(ctx, "123456"); outcome != OTPResetVerified {
		t.Fatalf("expected reset branch, got %s", outcome)
	}
}

func TestChangePasswordIsPassThrough(t *testing.T) {
	m, notes := newTestManager(t, nil)
	if !m.ChangePassword(context.Background(), "definitely-wrong", "x") {
		t.Fatalf("change password should succeed unconditionally")
	}
	if notes.last().Title != "Password changed" {
		t.Fatalf("unexpected notice %+v", notes.last())
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	m, _ := newTestManager(t, store)
	m.Login(ctx, "user@example.com", "password123")
	m.Login(ctx, "user@example.com", "bad") // leaves an error behind

	m.Logout(ctx)
	m.Logout(ctx)

	s := m.Session()
	if s.State() != StateUnauthenticated || s.Identity != nil || s.Error != "" {
		t.Fatalf("unexpected session after logout %+v", s)
	}
	if persisted, _ := store.Load(ctx); persisted != nil {
		t.Fatalf("expected store cleared, got %+v", persisted)
	}
}

func TestLogoutSurvivesStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := brokenStore{Store: session.NewMemoryStore(), clearErr: errors.New("disk on fire")}
	m, _ := newTestManager(t, store)
	m.Login(ctx, "user@example.com", "password123")
	m.Logout(ctx)
	if m.Session().Authenticated {
		t.Fatalf("logout must clear the session even when storage fails")
	}
}

func TestRestoreAfterRestart(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	first, _ := newTestManager(t, session.NewRedisStore(client, "", nil))
	if !first.Login(ctx, "admin@gmail.com", "admin123") {
		t.Fatalf("login failed")
	}

	raw, err := mr.Get(session.DefaultKey)
	if err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	if strings.Contains(raw, "admin123") || strings.Contains(strings.ToLower(raw), "password") {
		t.Fatalf("snapshot leaks secret: %s", raw)
	}

	restarted, _ := newTestManager(t, session.NewRedisStore(client, "", nil))
	s := restarted.Session()
	if !s.Authenticated || s.Identity.Email != "admin@gmail.com" || s.Identity.Role != identity.RoleAdmin {
		t.Fatalf("expected restored admin session, got %+v", s)
	}
}

func TestRestoreTreatsCorruptSnapshotAsNoSession(t *testing.T) {
	store := session.NewMemoryStore()
	store.Put([]byte(`{"id":`))
	m, _ := newTestManager(t, store)
	if m.Session().State() != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", m.Session().State())
	}
}

func TestRestoreStorageFailureDegrades(t *testing.T) {
	store := brokenStore{Store: session.NewMemoryStore(), loadErr: errors.New("unreachable")}
	m, _ := newTestManager(t, store)
	if s := m.Session(); s.State() != StateUnauthenticated || s.Loading {
		t.Fatalf("expected unauthenticated, got %+v", s)
	}
}

func TestUnexpectedFailuresDegradeToGenericError(t *testing.T) {
	ctx := context.Background()

	saveFails := brokenStore{Store: session.NewMemoryStore(), saveErr: errors.New("write failed")}
	m, _ := newTestManager(t, saveFails)
	if m.Login(ctx, "admin@gmail.com", "admin123") {
		t.Fatalf("expected failure when the session cannot be persisted")
	}
	if s := m.Session(); s.Authenticated || s.Error != MsgUnexpected {
		t.Fatalf("unexpected session %+v", s)
	}

	m.SignUp(ctx, emailSignup("new@x.com"))
	if _, ok := m.VerifyOTP(ctx, "123456"); ok {
		t.Fatalf("expected verify to fail when persistence fails")
	}
	if _, ok := m.PendingSignup(); !ok {
		t.Fatalf("pending signup should survive a failed commit")
	}

	broken := NewManager(brokenCreds{err: errors.New("db down")}, session.NewMemoryStore(), WithLatency(0))
	broken.Restore(ctx)
	if broken.Login(ctx, "admin@gmail.com", "admin123") || broken.Session().Error != MsgUnexpected {
		t.Fatalf("credential store failure should surface the generic error")
	}
	if broken.SignUp(ctx, emailSignup("x@y.z")) || broken.ResetPassword(ctx, "x@y.z") {
		t.Fatalf("expected failures")
	}
}

func TestPanicsAreContained(t *testing.T) {
	m := NewManager(panickyCreds{}, session.NewMemoryStore(), WithLatency(0))
	m.Restore(context.Background())
	if m.Login(context.Background(), "a@b.c", "x") {
		t.Fatalf("expected failure")
	}
	if m.Session().Error != MsgUnexpected {
		t.Fatalf("expected generic error, got %q", m.Session().Error)
	}
}

func TestCancelledWaitLeavesStateUnchanged(t *testing.T) {
	m, _ := newTestManager(t, nil, WithLatency(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if m.Login(ctx, "admin@gmail.com", "admin123") {
		t.Fatalf("expected failure on cancelled context")
	}
	if m.Session().Authenticated {
		t.Fatalf("cancelled login must not authenticate")
	}
}

func TestLatencyIsTheSuspensionPoint(t *testing.T) {
	m, _ := newTestManager(t, nil, WithLatency(30*time.Millisecond))
	start := time.Now()
	if !m.Login(context.Background(), "admin@gmail.com", "admin123") {
		t.Fatalf("login failed")
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected login to wait for the simulated latency, took %s", elapsed)
	}
}

func TestConcurrentLoginsLastWriterWins(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil, WithLatency(5*time.Millisecond))

	var wg sync.WaitGroup
	for _, creds := range [][2]string{{"admin@gmail.com", "admin123"}, {"user@example.com", "password123"}} {
		wg.Add(1)
		go func(handle, secret string) {
			defer wg.Done()
			m.Login(ctx, handle, secret)
		}(creds[0], creds[1])
	}
	wg.Wait()

	s := m.Session()
	if !s.Authenticated || (s.Identity.ID != "1" && s.Identity.ID != "2") {
		t.Fatalf("expected one of the two identities, got %+v", s)
	}
}

func TestSessionSnapshotIsACopy(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.Login(context.Background(), "admin@gmail.com", "admin123")
	s := m.Session()
	s.Identity.Role = identity.RoleUser
	if m.Session().Identity.Role != identity.RoleAdmin {
		t.Fatalf("mutating a snapshot must not leak into the manager")
	}
}

func TestSessionJSONLayout(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.Login(context.Background(), "admin@gmail.com", "admin123")
	raw, err := json.Marshal(m.Session())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"isAuthenticated":true`, `"isLoading":false`, `"firstName":"Admin"`} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("expected %s in %s", want, raw)
		}
	}
}

func TestMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	am := metrics.NewAuthMetrics("test", reg)
	m, _ := newTestManager(t, nil, WithMetrics(am))

	m.Login(context.Background(), "admin@gmail.com", "admin123")
	m.Login(context.Background(), "admin@gmail.com", "bad")

	if got := testutil.ToFloat64(am.Operations.WithLabelValues(opLogin, metrics.OutcomeSuccess)); got != 1 {
		t.Fatalf("expected 1 successful login, got %v", got)
	}
	if got := testutil.ToFloat64(am.Operations.WithLabelValues(opLogin, metrics.OutcomeRejected)); got != 1 {
		t.Fatalf("expected 1 rejected login, got %v", got)
	}
	if got := testutil.ToFloat64(am.Authenticated); got != 1 {
		t.Fatalf("expected authenticated gauge 1, got %v", got)
	}
}

func TestResetVerificationRechecksUnderLock(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	if !m.ResetPassword(ctx, "user@example.com") {
		t.Fatalf("reset should arm")
	}
	// Another operation clears the reset between the read and the commit.
	m.mu.Lock()
	m.pendingReset = nil
	m.mu.Unlock()

	if m.markResetVerified() {
		t.Fatalf("nothing pending: verification must not succeed")
	}
	if _, ok := m.PendingReset(); ok {
		t.Fatalf("no reset should be re-created")
	}

	outcome, ok := m.VerifyOTP(ctx, "123456")
	if ok || outcome != OTPRejected || m.Session().Error != MsgInvalidOTP {
		t.Fatalf("expected rejection, got %v %v %q", outcome, ok, m.Session().Error)
	}
}

func TestCompleteResetReportsCompletedPhase(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	m.ResetPassword(ctx, "+0987654321")
	if outcome, ok := m.VerifyOTP(ctx, "111111"); !ok || outcome != OTPResetVerified {
		t.Fatalf("verify failed: %v %v", outcome, ok)
	}

	done, reason := m.completeReset(ctx, "secret9")
	if reason != "" {
		t.Fatalf("complete failed: %q", reason)
	}
	if done.Phase != ResetCompleted || done.Handle != "+0987654321" {
		t.Fatalf("unexpected finished reset: %+v", done)
	}
	if _, ok := m.PendingReset(); ok {
		t.Fatalf("pending reset should be cleared")
	}
}

func TestFailureReasonIsPerCall(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	if reason := m.login(ctx, "admin@gmail.com", "wrong"); reason != MsgInvalidCredentials {
		t.Fatalf("expected %q, got %q", MsgInvalidCredentials, reason)
	}
	req := identity.SignUpRequest{Handle: identity.ByEmail("admin@gmail.com"), FirstName: "Ad", LastName: "Min", Password: "secret1"}
	if reason := m.signUp(ctx, req); reason != MsgUserExists {
		t.Fatalf("expected %q, got %q", MsgUserExists, reason)
	}
	if reason := m.login(ctx, "admin@gmail.com", "admin123"); reason != "" {
		t.Fatalf("expected success, got %q", reason)
	}
}

func TestDurationsIgnoreInjectedClock(t *testing.T) {
	reg := prometheus.NewRegistry()
	am := metrics.NewAuthMetrics("test", reg)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m, _ := newTestManager(t, nil,
		WithMetrics(am),
		WithClock(func() time.Time { return fixed }),
		WithLatency(5*time.Millisecond),
	)

	m.Login(context.Background(), "admin@gmail.com", "admin123")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var sum float64
	for _, mf := range families {
		if mf.GetName() != "test_auth_operation_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			sum += metric.GetHistogram().GetSampleSum()
		}
	}
	if sum < 0.005 {
		t.Fatalf("expected observed duration of at least the latency, got %v", sum)
	}
	if got := m.Session().Identity; got == nil {
		t.Fatalf("login should succeed")
	}
}
