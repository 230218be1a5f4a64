package goGuard

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// RequestPasswordReset mails a reset link to a registered address. It returns
// nil for unknown addresses so callers cannot probe for accounts.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.users == nil || e.tokens == nil || e.mailer == nil {
		return ErrEngineNotReady
	}
	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidInput
	}
	e.metricInc(MetricPasswordResetRequest)

	user, err := e.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		e.logger.Info("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return storeErr(err)
	}

	ttl := e.config.PasswordReset.TokenTTL
	token, err := e.tokens.IssueReset(user.ID, passwordStamp(user.PasswordHash), ttl)
	if err != nil {
		return err
	}
	expiry := e.now().Add(ttl).UTC()
	if err := e.users.SetPasswordResetExpiry(ctx, user.ID, &expiry); err != nil {
		return storeErr(err)
	}

	link, err := resetLink(e.config.PasswordReset.ResetURL, user.ID, token)
	if err != nil {
		return err
	}
	if err := e.mailer.SendPasswordResetEmail(ctx, user.Email, link); err != nil {
		// the response stays generic; delivery problems are an operator concern
		e.logger.Warn("password reset email failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil
	}

	e.emitAudit(ctx, ActionPasswordResetRequested, true, user.ID, "Password reset link sent", nil)
	return nil
}

// ConfirmPasswordReset sets a new password using a link from
// RequestPasswordReset. The link is single use: committing the new password
// clears the stored expiry and changes the hash the token is bound to.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, userID, token, newPassword string) error {
	if e == nil || e.users == nil || e.history == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" || token == "" || newPassword == "" {
		return ErrInvalidInput
	}

	user, err := e.users.FindByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return e.resetRejected(ErrPasswordResetInvalid)
	}
	if err != nil {
		return storeErr(err)
	}

	now := e.now()
	if user.PasswordResetExpiry == nil || !user.PasswordResetExpiry.After(now) {
		return e.resetRejected(ErrPasswordResetExpired)
	}

	claims, err := e.tokens.ParseReset(token)
	if err != nil || claims.UID != user.ID ||
		subtle.ConstantTimeCompare([]byte(claims.Stamp), []byte(passwordStamp(user.PasswordHash))) != 1 {
		return e.resetRejected(ErrPasswordResetInvalid)
	}

	if e.config.PasswordPolicy.EnforceMinAgeOnReset {
		if err := e.checkMinimumAge(ctx, user, now); err != nil {
			return err
		}
	}
	if err := e.checkStrength(newPassword); err != nil {
		return err
	}
	if err := e.checkReuse(ctx, user, newPassword); err != nil {
		return err
	}
	if err := e.commitPassword(ctx, user, newPassword, now, true); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, ActionPasswordReset, true, user.ID, "Password was reset via email link", nil)
	return nil
}

func (e *Engine) resetRejected(cause error) error {
	e.metricInc(MetricPasswordResetFailure)
	msg := "Invalid password reset link."
	if errors.Is(cause, ErrPasswordResetExpired) {
		msg = "This password reset link has expired. Please request a new one."
	}
	return &PasswordPolicyError{Message: msg, cause: cause}
}

// passwordStamp fingerprints a password hash so reset tokens die with it.
func passwordStamp(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

func resetLink(base, userID, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("userId", userID)
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
