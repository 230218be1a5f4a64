package goGuard

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/internal/stores"
	"go.uber.org/zap"
)

const msgContinuationExpired = "Your sign-in attempt expired. Please sign in again."

// CompleteTwoFactor resumes a login suspended by Login with
// StateTwoFactorPending. Wrong codes count toward the same lockout as wrong
// passwords. Use ClassifyTwoFactor on the returned error for the
// success / lockedOut / invalidCode outcome.
func (e *Engine) CompleteTwoFactor(ctx context.Context, continuation, code string) (*LoginResult, error) {
	if e == nil || e.users == nil || e.pending == nil {
		return nil, ErrEngineNotReady
	}
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	if code == "" {
		return nil, ErrInvalidInput
	}
	if !internal.ValidContinuationID(continuation) {
		return nil, e.continuationExpired(ctx, "", nil)
	}

	pending, err := e.pending.Get(ctx, continuation)
	if errors.Is(err, stores.ErrPendingLoginNotFound) {
		return nil, e.continuationExpired(ctx, "", nil)
	}
	if errors.Is(err, stores.ErrPendingLoginExpired) {
		return nil, e.continuationExpired(ctx, pending.UserID, pending.ScorePtr())
	}
	if err != nil {
		return nil, e.loginUnavailable(ctx, "", err, nil)
	}

	score := pending.ScorePtr()

	user, err := e.users.FindByID(ctx, pending.UserID)
	if err != nil {
		return nil, e.loginUnavailable(ctx, pending.UserID, err, score)
	}

	now := e.now()
	if user.IsLockedOut(now) {
		e.discardContinuation(ctx, continuation)
		remaining := user.LockoutEnd.Sub(now)
		e.metricInc(MetricLoginLockedOut)
		e.emitAudit(ctx, ActionTwoFactorLocked, false, user.ID, "2FA attempted while the account is locked", score)
		return nil, &LoginError{
			Kind:      FailureLockedOut,
			Message:   lockedOutMessage(remaining),
			LockedFor: remaining,
			Score:     score,
			cause:     ErrAccountLocked,
		}
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == "" {
		// 2FA was switched off while the login was pending
		e.discardContinuation(ctx, continuation)
		return nil, e.continuationExpired(ctx, user.ID, score)
	}

	if !e.validateTOTP(user.TwoFactorSecret, code) {
		err := e.recordFailedAttempt(ctx, user, score, true)
		if errors.Is(err, ErrAccountLocked) {
			e.discardContinuation(ctx, continuation)
		}
		return nil, err
	}

	claimed, err := e.pending.Delete(ctx, continuation)
	if err != nil {
		return nil, e.loginUnavailable(ctx, user.ID, err, score)
	}
	if !claimed {
		// a concurrent completion already used this continuation
		return nil, e.continuationExpired(ctx, user.ID, score)
	}

	if err := e.users.ResetFailedCount(ctx, user.ID); err != nil {
		return nil, e.loginUnavailable(ctx, user.ID, err, score)
	}
	token, err := e.issueSession(ctx, user)
	if err != nil {
		return nil, e.loginUnavailable(ctx, user.ID, err, score)
	}

	e.metricInc(MetricTwoFactorSuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, ActionTwoFactorSuccess, true, user.ID, "Two-factor authentication completed", score)

	return &LoginResult{
		State:        StateSessionIssued,
		UserID:       user.ID,
		SessionToken: token,
		RememberMe:   pending.RememberMe,
		Score:        score,
		Password:     e.passwordStatus(user, now),
	}, nil
}

func (e *Engine) discardContinuation(ctx context.Context, continuation string) {
	if _, err := e.pending.Delete(ctx, continuation); err != nil {
		e.logger.Warn("pending login cleanup failed", zap.Error(err))
	}
}

// continuationExpired ends a 2FA attempt whose continuation is unknown, used
// or lapsed. userID is empty when the continuation could not be read.
func (e *Engine) continuationExpired(ctx context.Context, userID string, score *float64) error {
	e.emitAudit(ctx, ActionTwoFactorExpired, false, userID,
		"2FA continuation expired, unknown or already used", score)
	return &LoginError{
		Kind:    FailureContinuationExpired,
		Message: msgContinuationExpired,
		cause:   ErrTwoFactorExpired,
	}
}
