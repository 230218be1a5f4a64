package goGuard_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "Correct-Horse-9battery"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingStore counts failed-attempt increments and can fail lookups.
type countingStore struct {
	*memory.Store
	increments atomic.Int32
	failLookup atomic.Bool
}

func (s *countingStore) IncrementFailedCount(ctx context.Context, userID string) (int, error) {
	s.increments.Add(1)
	return s.Store.IncrementFailedCount(ctx, userID)
}

func (s *countingStore) FindByEmail(ctx context.Context, email string) (*goGuard.User, error) {
	if s.failLookup.Load() {
		return nil, errors.New("connection refused")
	}
	return s.Store.FindByEmail(ctx, email)
}

type sentMail struct {
	address string
	link    string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *captureMailer) SendPasswordResetEmail(_ context.Context, address, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{address: address, link: link})
	return nil
}

func (m *captureMailer) all() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// siteverify imitates the verification endpoint. The reply echoes the
// submitted token as the action unless action is set.
type siteverify struct {
	mu      sync.Mutex
	success bool
	score   float64
	action  string
}

func (s *siteverify) set(success bool, score float64) {
	s.mu.Lock()
	s.success, s.score = success, score
	s.mu.Unlock()
}

func (s *siteverify) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	action := s.action
	if action == "" {
		action = r.PostForm.Get("response")
	}
	reply := map[string]any{
		"success":  s.success,
		"score":    s.score,
		"action":   action,
		"hostname": "localhost",
	}
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reply)
}

type fixture struct {
	engine *goGuard.Engine
	store  *countingStore
	clock  *fakeClock
	mail   *captureMailer
	redis  *miniredis.Miniredis
	verify *siteverify
}

type fixtureOption func(*goGuard.Config)

// withHumanCheck points the verifier at an in-process siteverify server.
func withHumanCheck(endpoint string) fixtureOption {
	return func(cfg *goGuard.Config) {
		cfg.HumanCheck.Enabled = true
		cfg.HumanCheck.SiteKey = "test-site-key"
		cfg.HumanCheck.SecretKey = "test-secret-key"
		cfg.HumanCheck.Endpoint = endpoint
		cfg.HumanCheck.Timeout = 2 * time.Second
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := goGuard.DefaultConfig()
	cfg.HumanCheck.Enabled = false
	cfg.Audit.Synchronous = true
	cfg.Hashing = goGuard.HashingConfig{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}
	cfg.Tokens.Secret = strings.Repeat("s", 32)
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &fixture{
		store: &countingStore{Store: memory.New()},
		clock: newFakeClock(),
		mail:  &captureMailer{},
		redis: mr,
	}
	engine, err := goGuard.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(f.store).
		WithMailer(f.mail).
		WithClock(f.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	f.engine = engine
	return f
}

// newVerifiedFixture runs the human check against a siteverify server that
// passes with score 0.9 until told otherwise.
func newVerifiedFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	sv := &siteverify{success: true, score: 0.9}
	srv := httptest.NewServer(sv)
	t.Cleanup(srv.Close)
	f := newFixture(t, append([]fixtureOption{withHumanCheck(srv.URL)}, opts...)...)
	f.verify = sv
	return f
}

func (f *fixture) register(t *testing.T, email, password string) string {
	t.Helper()
	res, err := f.engine.Register(context.Background(), goGuard.RegisterRequest{
		Email: email, Password: password, HumanToken: "register",
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return res.UserID
}

func (f *fixture) login(password string) (*goGuard.LoginResult, error) {
	return f.engine.Login(context.Background(), goGuard.LoginRequest{
		Email: testEmail, Password: password, HumanToken: "login",
	})
}

func (f *fixture) user(t *testing.T, id string) *goGuard.User {
	t.Helper()
	u, err := f.store.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	return u
}

func (f *fixture) events(action string) []goGuard.AuditEvent {
	var out []goGuard.AuditEvent
	for _, ev := range f.store.AuditEvents() {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

func loginError(t *testing.T, err error) *goGuard.LoginError {
	t.Helper()
	var le *goGuard.LoginError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoginError, got %T (%v)", err, err)
	}
	return le
}

func policyError(t *testing.T, err error) *goGuard.PasswordPolicyError {
	t.Helper()
	var pe *goGuard.PasswordPolicyError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PasswordPolicyError, got %T (%v)", err, err)
	}
	return pe
}
