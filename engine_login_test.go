package goGuard_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLoginSuccessRecordsScore(t *testing.T) {
	f := newVerifiedFixture(t)
	id := f.register(t, testEmail, testPassword)

	res, err := f.login(testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.State != goGuard.StateSessionIssued || res.SessionToken == "" {
		t.Fatalf("expected issued session, got %+v", res)
	}
	if res.Score == nil || *res.Score != 0.9 {
		t.Fatalf("expected score 0.9, got %v", res.Score)
	}

	u := f.user(t, id)
	if u.SessionToken == nil || *u.SessionToken != res.SessionToken {
		t.Fatal("stored session token does not match the issued one")
	}
	if u.LastLoginAt == nil || !u.LastLoginAt.Equal(f.clock.Now()) {
		t.Fatalf("expected last login at %v, got %v", f.clock.Now(), u.LastLoginAt)
	}

	success := f.events(goGuard.ActionLoginSuccess)
	if len(success) != 1 {
		t.Fatalf("expected one login success entry, got %d", len(success))
	}
	if success[0].UserID != id || success[0].Score == nil || *success[0].Score != 0.9 {
		t.Fatalf("unexpected login success entry: %+v", success[0])
	}
}

func TestLoginUnknownEmailIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.register(t, testEmail, testPassword)

	_, err := f.engine.Login(context.Background(), goGuard.LoginRequest{
		Email: "nobody@example.com", Password: testPassword,
	})
	le := loginError(t, err)
	if le.Kind != goGuard.FailureInvalidCredentials || le.Message != "Invalid email or password." {
		t.Fatalf("unexpected error: kind=%v message=%q", le.Kind, le.Message)
	}
	if !errors.Is(err, goGuard.ErrInvalidCredentials) {
		t.Fatal("expected ErrInvalidCredentials")
	}

	evs := f.events(goGuard.ActionLoginFailedUnknown)
	if len(evs) != 1 || evs[0].UserID != "" {
		t.Fatalf("expected one anonymous unknown-account entry, got %+v", evs)
	}
	if f.store.increments.Load() != 0 {
		t.Fatal("unknown account must not touch any counter")
	}
}

func TestLoginWrongPasswordDisclosesRemainingAttempts(t *testing.T) {
	f := newFixture(t)
	f.register(t, testEmail, testPassword)

	_, err := f.login("Wrong-Password-1x")
	le := loginError(t, err)
	if le.RemainingAttempts != 2 {
		t.Fatalf("expected 2 remaining attempts, got %d", le.RemainingAttempts)
	}
	if le.Message != "Invalid email or password. 2 attempt(s) remaining before account lockout." {
		t.Fatalf("unexpected message %q", le.Message)
	}
}

func TestLoginWrongPasswordWithoutDisclosure(t *testing.T) {
	f := newFixture(t, func(cfg *goGuard.Config) {
		cfg.Lockout.DiscloseRemainingAttempts = false
	})
	f.register(t, testEmail, testPassword)

	_, err := f.login("Wrong-Password-1x")
	if le := loginError(t, err); le.Message != "Invalid email or password." {
		t.Fatalf("unexpected message %q", le.Message)
	}
}

func TestLoginThreeStrikesLocksWithoutFurtherIncrement(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, testEmail, testPassword)

	for i := 1; i <= 2; i++ {
		_, err := f.login("Wrong-Password-1x")
		if le := loginError(t, err); le.Kind != goGuard.FailureInvalidCredentials {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, le.Kind)
		}
	}

	_, err := f.login("Wrong-Password-1x")
	le := loginError(t, err)
	if le.Kind != goGuard.FailureLockoutTriggered {
		t.Fatalf("expected lockout on third attempt, got %v", le.Kind)
	}
	if le.Message != "Account locked due to multiple failed login attempts. Please try again in 15 minutes." {
		t.Fatalf("unexpected message %q", le.Message)
	}
	u := f.user(t, id)
	if u.LockoutEnd == nil || !u.LockoutEnd.Equal(f.clock.Now().Add(15*time.Minute)) {
		t.Fatalf("unexpected lockout end %v", u.LockoutEnd)
	}
	if got := len(f.events(goGuard.ActionAccountLocked)); got != 1 {
		t.Fatalf("expected one lock entry, got %d", got)
	}

	f.clock.Advance(5 * time.Minute)
	_, err = f.login(testPassword)
	le = loginError(t, err)
	if le.Kind != goGuard.FailureLockedOut || !errors.Is(err, goGuard.ErrAccountLocked) {
		t.Fatalf("expected locked out, got %v", err)
	}
	if le.Message != "Account is locked due to multiple failed attempts. Please try again in 10 minutes." {
		t.Fatalf("unexpected message %q", le.Message)
	}
	if le.LockedFor != 10*time.Minute {
		t.Fatalf("expected 10m remaining, got %v", le.LockedFor)
	}
	if got := f.store.increments.Load(); got != 3 {
		t.Fatalf("expected 3 increments, got %d", got)
	}
	if got := f.user(t, id).FailedCount; got != 3 {
		t.Fatalf("expected failed count 3, got %d", got)
	}
}

func TestLockedAccountRecoversExactlyOnce(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, testEmail, testPassword)
	for i := 0; i < 3; i++ {
		_, _ = f.login("Wrong-Password-1x")
	}

	f.clock.Advance(15*time.Minute + time.Second)
	if _, err := f.login(testPassword); err != nil {
		t.Fatalf("Login after lockout: %v", err)
	}
	if _, err := f.login(testPassword); err != nil {
		t.Fatalf("second Login: %v", err)
	}

	if got := len(f.events(goGuard.ActionAccountRecovered)); got != 1 {
		t.Fatalf("expected one recovery entry, got %d", got)
	}
	u := f.user(t, id)
	if u.FailedCount != 0 || u.LockoutEnd != nil {
		t.Fatalf("expected cleared lockout state, got count=%d end=%v", u.FailedCount, u.LockoutEnd)
	}
}

func TestRecoveredAccountStartsFreshCount(t *testing.T) {
	f := newFixture(t)
	f.register(t, testEmail, testPassword)
	for i := 0; i < 3; i++ {
		_, _ = f.login("Wrong-Password-1x")
	}
	f.clock.Advance(16 * time.Minute)

	_, err := f.login("Wrong-Password-1x")
	le := loginError(t, err)
	if le.Kind != goGuard.FailureInvalidCredentials || le.RemainingAttempts != 2 {
		t.Fatalf("expected a fresh count after recovery, got kind=%v remaining=%d", le.Kind, le.RemainingAttempts)
	}
	if got := len(f.events(goGuard.ActionAccountRecovered)); got != 1 {
		t.Fatalf("expected recovery entry, got %d", got)
	}
}

func TestLoginSuccessResetsFailedCount(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, testEmail, testPassword)
	_, _ = f.login("Wrong-Password-1x")
	_, _ = f.login("Wrong-Password-1x")

	if _, err := f.login(testPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := f.user(t, id).FailedCount; got != 0 {
		t.Fatalf("expected failed count reset, got %d", got)
	}
}

func TestLoginLowScoreBlocked(t *testing.T) {
	f := newVerifiedFixture(t)
	f.register(t, testEmail, testPassword)
	f.verify.set(true, 0.3)

	_, err := f.login(testPassword)
	le := loginError(t, err)
	if le.Kind != goGuard.FailureHumanCheck || le.HumanCheckCode != "LOW_SCORE" {
		t.Fatalf("expected low score rejection, got kind=%v code=%q", le.Kind, le.HumanCheckCode)
	}
	if le.Message != "Security verification failed: Suspicious activity detected (Score: 0.30). Please try again." {
		t.Fatalf("unexpected message %q", le.Message)
	}
	if !errors.Is(err, goGuard.ErrHumanCheckFailed) {
		t.Fatal("expected ErrHumanCheckFailed")
	}
	if f.store.increments.Load() != 0 {
		t.Fatal("human check rejection must not count as a failed attempt")
	}

	failed := f.events("Human Check Failed - LOGIN")
	if len(failed) != 1 || failed[0].Detail != "Score: 0.30, ErrorCode: LOW_SCORE" {
		t.Fatalf("unexpected human check entries %+v", failed)
	}
	if got := len(f.events(goGuard.ActionLoginFailedHumanCheck)); got != 1 {
		t.Fatalf("expected one login human check failure entry, got %d", got)
	}
}

func TestLoginMissingHumanToken(t *testing.T) {
	f := newVerifiedFixture(t)
	f.register(t, testEmail, testPassword)

	_, err := f.engine.Login(context.Background(), goGuard.LoginRequest{
		Email: testEmail, Password: testPassword,
	})
	le := loginError(t, err)
	if le.HumanCheckCode != "MISSING_TOKEN" {
		t.Fatalf("expected MISSING_TOKEN, got %q", le.HumanCheckCode)
	}
	if !strings.Contains(le.Message, "missing token") {
		t.Fatalf("unexpected message %q", le.Message)
	}
}

func TestLoginHumanCheckActionMismatch(t *testing.T) {
	f := newVerifiedFixture(t)
	f.register(t, testEmail, testPassword)
	f.verify.mu.Lock()
	f.verify.action = "checkout"
	f.verify.mu.Unlock()

	_, err := f.login(testPassword)
	if le := loginError(t, err); le.HumanCheckCode != "ACTION_MISMATCH" {
		t.Fatalf("expected ACTION_MISMATCH, got %q", le.HumanCheckCode)
	}
}

func TestSameHumanTokenTwiceAuditedTwice(t *testing.T) {
	f := newVerifiedFixture(t)
	f.register(t, testEmail, testPassword)

	for i := 0; i < 2; i++ {
		res, err := f.login(testPassword)
		if err != nil {
			t.Fatalf("Login %d: %v", i, err)
		}
		if res.HumanCheckSkipped {
			t.Fatal("human check should not be skipped")
		}
	}
	if got := len(f.events("Human Check Verified - LOGIN")); got != 2 {
		t.Fatalf("expected two verified entries, got %d", got)
	}
}

func TestHumanCheckSkippedWhenDisabled(t *testing.T) {
	f := newFixture(t)
	f.register(t, testEmail, testPassword)

	res, err := f.login(testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !res.HumanCheckSkipped || res.Score != nil {
		t.Fatalf("expected skipped check without score, got skipped=%v score=%v", res.HumanCheckSkipped, res.Score)
	}
	if got := len(f.events("Human Check Skipped - LOGIN")); got != 1 {
		t.Fatalf("expected one skipped entry, got %d", got)
	}
}

func TestSecondLoginDisplacesFirstSession(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, testEmail, testPassword)
	ctx := context.Background()

	first, err := f.login(testPassword)
	if err != nil {
		t.Fatalf("first Login: %v", err)
	}
	second, err := f.login(testPassword)
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if first.SessionToken == second.SessionToken {
		t.Fatal("each login must issue a distinct session token")
	}

	verdict, err := f.engine.CheckSession(ctx, id, first.SessionToken)
	if err != nil || verdict != session.VerdictMismatch {
		t.Fatalf("expected mismatch for displaced session, got %v %v", verdict, err)
	}
	verdict, err = f.engine.CheckSession(ctx, id, second.SessionToken)
	if err != nil || verdict != session.VerdictOK {
		t.Fatalf("expected ok for current session, got %v %v", verdict, err)
	}
	if got := len(f.events(goGuard.ActionSessionRevoked)); got != 1 {
		t.Fatalf("expected one revoked entry, got %d", got)
	}
}

func TestLoginRejectsEmptyInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Login(context.Background(), goGuard.LoginRequest{Email: "  ", Password: "x"})
	if !errors.Is(err, goGuard.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if got := len(f.store.AuditEvents()); got != 0 {
		t.Fatalf("expected no audit entries, got %d", got)
	}
}

func TestLoginStoreFailureIsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.register(t, testEmail, testPassword)
	f.store.failLookup.Store(true)

	_, err := f.login(testPassword)
	le := loginError(t, err)
	if le.Kind != goGuard.FailureUnavailable || !errors.Is(err, goGuard.ErrStoreUnavailable) {
		t.Fatalf("expected unavailable, got kind=%v err=%v", le.Kind, err)
	}
	if got := len(f.events(goGuard.ActionLoginUnavailable)); got != 1 {
		t.Fatalf("expected one unavailable entry, got %d", got)
	}
	if got := len(f.events(goGuard.ActionLoginFailed)); got != 0 {
		t.Fatalf("backend failures must not look like a wrong password, got %d", got)
	}
}

func TestLoginOutcomeLabelsAreDistinct(t *testing.T) {
	f := newFixture(t)
	f.register(t, testEmail, testPassword)

	_, wrong := f.login("Wrong-Password-1x")
	f.store.failLookup.Store(true)
	_, down := f.login(testPassword)

	if loginError(t, wrong).Kind == loginError(t, down).Kind {
		t.Fatal("expected two different failure kinds")
	}
	var labels []string
	for _, ev := range f.store.AuditEvents() {
		if !ev.Success && strings.HasPrefix(ev.Action, "Login Failed") {
			labels = append(labels, ev.Action)
		}
	}
	if len(labels) != 2 || labels[0] == labels[1] {
		t.Fatalf("expected one distinct label per outcome, got %q", labels)
	}
}

func TestLoginUpgradesStaleHash(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, testEmail, testPassword)
	before := f.user(t, id)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	cfg := f.engine.Config()
	cfg.Hashing.Time = 2
	stronger, err := goGuard.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(f.store).
		WithClock(f.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer stronger.Close()

	req := goGuard.LoginRequest{Email: testEmail, Password: testPassword}
	if _, err := stronger.Login(context.Background(), req); err != nil {
		t.Fatalf("Login: %v", err)
	}
	after := f.user(t, id)
	if after.PasswordHash == before.PasswordHash {
		t.Fatal("expected the stored hash to be upgraded")
	}
	if !after.PasswordChangedAt.Equal(*before.PasswordChangedAt) {
		t.Fatalf("rehash must not count as a password change: %v -> %v", before.PasswordChangedAt, after.PasswordChangedAt)
	}
	if got := len(f.history(t, id)); got != 1 {
		t.Fatalf("rehash must not touch history, got %d entries", got)
	}

	if _, err := stronger.Login(context.Background(), req); err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if got := stronger.MetricsSnapshot().Counters[goGuard.MetricPasswordRehashed]; got != 1 {
		t.Fatalf("expected a single rehash, got %d", got)
	}
	if _, err := f.login(testPassword); err != nil {
		t.Fatalf("upgraded hash should still verify: %v", err)
	}
}

func TestLoginCarriesClientMetadataIntoAudit(t *testing.T) {
	f := newFixture(t)
	f.register(t, testEmail, testPassword)

	ctx := goGuard.WithUserAgent(goGuard.WithClientIP(context.Background(), "203.0.113.7"), "test-agent")
	if _, err := f.engine.Login(ctx, goGuard.LoginRequest{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	evs := f.events(goGuard.ActionLoginSuccess)
	if len(evs) != 1 || evs[0].IP != "203.0.113.7" || evs[0].UserAgent != "test-agent" {
		t.Fatalf("unexpected entry %+v", evs)
	}
}
