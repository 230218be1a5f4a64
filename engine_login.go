package goGuard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/humancheck"
	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/internal/stores"
	"go.uber.org/zap"
)

const (
	msgInvalidCredentials = "Invalid email or password."
	msgUnavailable        = "The service is temporarily unavailable. Please try again."
	auditTimeLayout       = "2006-01-02 15:04:05"
)

// Login runs one login attempt through the human check, credential lookup,
// lockout check and password check. It either issues a session, suspends the
// attempt for a second factor, or returns a *LoginError.
//
// Email existence is never revealed: unknown accounts and wrong passwords
// share a message, and unknown accounts still pay for one hash verification.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	started := time.Now()
	defer func() { e.metrics.Observe(MetricLoginLatency, time.Since(started)) }()

	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, ErrInvalidInput
	}

	hc := e.human.Verify(ctx, req.HumanToken, humanCheckLogin, email)
	score := hc.ScorePtr()
	if !hc.Valid {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, ActionLoginFailedHumanCheck, false, "",
			"Human verification failed: "+hc.ErrorCode, score)
		return nil, &LoginError{
			Kind:           FailureHumanCheck,
			Message:        humanCheckMessage(hc),
			Score:          score,
			HumanCheckCode: hc.ErrorCode,
			cause:          ErrHumanCheckFailed,
		}
	}

	user, err := e.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		// keep response time close to the known-account path
		_, _ = e.hasher.Verify(req.Password, e.dummyHash)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, ActionLoginFailedUnknown, false, "",
			"Login attempt for an unregistered email", score)
		return nil, &LoginError{
			Kind:    FailureInvalidCredentials,
			Message: msgInvalidCredentials,
			Score:   score,
			cause:   ErrInvalidCredentials,
		}
	}
	if err != nil {
		return nil, e.loginUnavailable(ctx, "", err, score)
	}

	now := e.now()
	if user.IsLockedOut(now) {
		remaining := user.LockoutEnd.Sub(now)
		e.metricInc(MetricLoginLockedOut)
		e.emitAudit(ctx, ActionLoginFailedLocked, false, user.ID,
			fmt.Sprintf("Account is locked until %s. Remaining time: %d minutes",
				user.LockoutEnd.UTC().Format(auditTimeLayout), ceilMinutes(remaining)), score)
		return nil, &LoginError{
			Kind:      FailureLockedOut,
			Message:   lockedOutMessage(remaining),
			LockedFor: remaining,
			Score:     score,
			cause:     ErrAccountLocked,
		}
	}
	if user.LockoutExpired(now) {
		if err := e.recoverAccount(ctx, user, score); err != nil {
			return nil, e.loginUnavailable(ctx, user.ID, err, score)
		}
	}

	ok, err := e.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		e.logger.Error("stored password hash rejected by hasher", zap.String("user_id", user.ID), zap.Error(err))
		ok = false
	}
	if !ok {
		return nil, e.recordFailedAttempt(ctx, user, score, false)
	}
	e.upgradeHash(ctx, user, req.Password)

	if user.TwoFactorEnabled {
		// the failure counter survives until the second factor succeeds
		return e.suspendForTwoFactor(ctx, user, req.RememberMe, hc)
	}

	if user.FailedCount > 0 {
		if err := e.users.ResetFailedCount(ctx, user.ID); err != nil {
			return nil, e.loginUnavailable(ctx, user.ID, err, score)
		}
	}

	token, err := e.issueSession(ctx, user)
	if err != nil {
		return nil, e.loginUnavailable(ctx, user.ID, err, score)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, ActionLoginSuccess, true, user.ID,
		fmt.Sprintf("User logged in successfully at %s", now.UTC().Format(auditTimeLayout)), score)

	return &LoginResult{
		State:             StateSessionIssued,
		UserID:            user.ID,
		SessionToken:      token,
		RememberMe:        req.RememberMe,
		Score:             score,
		HumanCheckSkipped: hc.Skipped,
		Password:          e.passwordStatus(user, now),
	}, nil
}

// recoverAccount clears a lapsed lockout before the password is checked.
func (e *Engine) recoverAccount(ctx context.Context, user *User, score *float64) error {
	if err := e.users.SetLockoutEnd(ctx, user.ID, nil); err != nil {
		return err
	}
	if err := e.users.ResetFailedCount(ctx, user.ID); err != nil {
		return err
	}
	user.LockoutEnd = nil
	user.FailedCount = 0

	e.metricInc(MetricAccountRecovered)
	e.emitAudit(ctx, ActionAccountRecovered, true, user.ID,
		"Lockout period expired - account automatically recovered", score)
	e.logger.Info("account lockout expired", zap.String("user_id", user.ID))
	return nil
}

// recordFailedAttempt counts a wrong password or second-factor code and locks
// the account once the threshold is reached.
func (e *Engine) recordFailedAttempt(ctx context.Context, user *User, score *float64, twoFactor bool) error {
	count, err := e.users.IncrementFailedCount(ctx, user.ID)
	if err != nil {
		return e.loginUnavailable(ctx, user.ID, err, score)
	}

	threshold := e.config.Lockout.Threshold
	if count >= threshold {
		lockFor := e.config.Lockout.Duration
		end := e.now().Add(lockFor).UTC()
		if err := e.users.SetLockoutEnd(ctx, user.ID, &end); err != nil {
			return e.loginUnavailable(ctx, user.ID, err, score)
		}

		action := ActionAccountLocked
		if twoFactor {
			action = ActionTwoFactorLockout
		}
		e.metricInc(MetricLockoutTriggered)
		e.emitAudit(ctx, action, false, user.ID,
			fmt.Sprintf("Account locked after %d failed attempts until %s", count, end.Format(auditTimeLayout)), score)
		e.logger.Warn("account locked", zap.String("user_id", user.ID), zap.Int("failed_count", count))

		return &LoginError{
			Kind:      FailureLockoutTriggered,
			Message:   fmt.Sprintf("Account locked due to multiple failed login attempts. Please try again in %d minutes.", ceilMinutes(lockFor)),
			LockedFor: lockFor,
			Score:     score,
			cause:     ErrAccountLocked,
		}
	}

	remaining := threshold - count
	if twoFactor {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, ActionTwoFactorFailed, false, user.ID,
			fmt.Sprintf("Invalid 2FA code entered. Failed attempts: %d, Remaining: %d", count, remaining), score)
		return &LoginError{
			Kind:              FailureInvalidCode,
			Message:           "Invalid authenticator code.",
			RemainingAttempts: remaining,
			Score:             score,
			cause:             ErrTwoFactorInvalidCode,
		}
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, ActionLoginFailed, false, user.ID,
		fmt.Sprintf("Invalid password. Failed attempts: %d, Remaining: %d", count, remaining), score)

	message := msgInvalidCredentials
	if e.config.Lockout.DiscloseRemainingAttempts {
		message = fmt.Sprintf("Invalid email or password. %d attempt(s) remaining before account lockout.", remaining)
	}
	return &LoginError{
		Kind:              FailureInvalidCredentials,
		Message:           message,
		RemainingAttempts: remaining,
		Score:             score,
		cause:             ErrInvalidCredentials,
	}
}

func (e *Engine) suspendForTwoFactor(ctx context.Context, user *User, rememberMe bool, hc humancheck.Result) (*LoginResult, error) {
	score := hc.ScorePtr()
	continuation, err := internal.NewContinuationID()
	if err != nil {
		return nil, e.loginUnavailable(ctx, user.ID, err, score)
	}

	ttl := e.config.TwoFactor.ContinuationTTL
	record := &stores.PendingLogin{
		UserID:     user.ID,
		ExpiresAt:  e.now().Add(ttl).Unix(),
		RememberMe: rememberMe,
		HasScore:   hc.Scored,
		Score:      hc.Score,
	}
	if err := e.pending.Save(ctx, continuation, record, ttl); err != nil {
		return nil, e.loginUnavailable(ctx, user.ID, err, score)
	}

	e.metricInc(MetricTwoFactorRequired)
	e.emitAudit(ctx, ActionTwoFactorRequired, true, user.ID, "Two-factor authentication required", score)

	return &LoginResult{
		State:             StateTwoFactorPending,
		UserID:            user.ID,
		Continuation:      continuation,
		RememberMe:        rememberMe,
		Score:             score,
		HumanCheckSkipped: hc.Skipped,
	}, nil
}

func (e *Engine) loginUnavailable(ctx context.Context, userID string, err error, score *float64) error {
	e.logger.Error("login aborted by backend failure", zap.String("user_id", userID), zap.Error(err))
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, ActionLoginUnavailable, false, userID, "Login aborted: service unavailable", score)

	return &LoginError{
		Kind:    FailureUnavailable,
		Message: msgUnavailable,
		Score:   score,
		cause:   storeErr(err),
	}
}

// upgradeHash re-encodes the password when the stored hash predates the
// current hashing parameters. Failures are logged and the login continues.
func (e *Engine) upgradeHash(ctx context.Context, user *User, plaintext string) {
	up, ok := e.hasher.(HashUpgrader)
	if !ok {
		return
	}
	stale, err := up.NeedsUpgrade(user.PasswordHash)
	if err != nil || !stale {
		return
	}
	encoded, err := e.hasher.Hash(plaintext)
	if err != nil {
		e.logger.Warn("password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if err := e.users.SetPasswordHash(ctx, user.ID, encoded); err != nil {
		e.logger.Warn("password rehash not stored", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = encoded
	e.metricInc(MetricPasswordRehashed)
}

func humanCheckMessage(r humancheck.Result) string {
	if r.ErrorCode == humancheck.CodeMissingToken {
		return "Security verification failed (missing token). Please refresh the page and try again."
	}
	if r.Message != "" {
		return "Security verification failed: " + r.Message
	}
	return "Security verification failed. Please try again."
}

func lockedOutMessage(remaining time.Duration) string {
	return fmt.Sprintf("Account is locked due to multiple failed attempts. Please try again in %d minutes.", ceilMinutes(remaining))
}
