package goGuard

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/humancheck"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/stores"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/password"
	"github.com/MrEthical07/goGuard/session"
	"go.uber.org/zap"
)

// Engine runs the login state machine, the single-session guard and the
// password lifecycle policy. Build one with New().…Build(). All methods are
// safe for concurrent use.
type Engine struct {
	config    Config
	users     CredentialStore
	history   PasswordHistoryStore
	auditLog  AuditStore
	mailer    Mailer
	hasher    PasswordHasher
	strength  password.Policy
	dummyHash string
	human     *humancheck.Verifier
	pending   *stores.TwoFactorPendingStore
	tokens    *jwt.Manager
	audit     *audit.Dispatcher
	metrics   *Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports events dropped by a full or failing audit pipeline.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// IssueIdentity signs the identity token the HTTP layer stores in its auth
// cookie. rememberMe selects the long lifetime.
func (e *Engine) IssueIdentity(userID string, rememberMe bool) (string, time.Duration, error) {
	if e == nil || e.tokens == nil {
		return "", 0, ErrEngineNotReady
	}
	ttl := e.config.Session.IdentityTTL
	if rememberMe {
		ttl = e.config.Session.RememberMeTTL
	}
	token, err := e.tokens.IssueIdentity(userID, ttl, rememberMe)
	if err != nil {
		return "", 0, err
	}
	return token, ttl, nil
}

// ParseIdentity verifies an identity token and returns the user id.
func (e *Engine) ParseIdentity(token string) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	claims, err := e.tokens.ParseIdentity(token)
	if err != nil {
		return "", err
	}
	return claims.UID, nil
}

// CheckSession compares presented with the user's recorded session token.
// A mismatch is audited; the caller is expected to end the request.
func (e *Engine) CheckSession(ctx context.Context, userID, presented string) (session.Verdict, error) {
	if e == nil || e.users == nil {
		return session.VerdictNotEnforced, ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return session.VerdictNotEnforced, ErrInvalidInput
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return session.VerdictNotEnforced, storeErr(err)
	}

	verdict := session.Check(user.SessionToken, presented)
	if verdict == session.VerdictMismatch {
		e.metricInc(MetricSessionMismatch)
		e.emitAudit(ctx, ActionSessionRevoked, false, user.ID,
			"Session invalidated because the account signed in elsewhere", nil)
	}
	return verdict, nil
}

// Logout clears the user's session token.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}
	if err := e.users.ClearSessionToken(ctx, userID); err != nil {
		return storeErr(err)
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, ActionLogout, true, userID, "User logged out", nil)
	return nil
}

// issueSession writes a fresh session token, displacing any previous one.
func (e *Engine) issueSession(ctx context.Context, user *User) (string, error) {
	token, err := session.NewToken()
	if err != nil {
		return "", err
	}
	if err := e.users.SetSessionToken(ctx, user.ID, token, e.now().UTC()); err != nil {
		return "", storeErr(err)
	}
	e.metricInc(MetricSessionIssued)
	return token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
