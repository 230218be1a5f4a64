package goGuard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ChangePassword replaces a signed-in user's password after checking the
// current one, the minimum age, the strength policy and the reuse history.
// Policy rejections are *PasswordPolicyError; a wrong current password is
// ErrInvalidCredentials.
func (e *Engine) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	if e == nil || e.users == nil || e.history == nil {
		return ErrEngineNotReady
	}
	if strings.TrimSpace(req.UserID) == "" || req.CurrentPassword == "" || req.NewPassword == "" {
		return ErrInvalidInput
	}

	user, err := e.users.FindByID(ctx, req.UserID)
	if err != nil {
		return storeErr(err)
	}

	ok, err := e.hasher.Verify(req.CurrentPassword, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, ActionPasswordWrongCurrent, false, user.ID,
			"Password change attempted with an incorrect current password", nil)
		return ErrInvalidCredentials
	}

	now := e.now()
	if err := e.checkMinimumAge(ctx, user, now); err != nil {
		return err
	}
	if err := e.checkStrength(req.NewPassword); err != nil {
		return err
	}
	if err := e.checkReuse(ctx, user, req.NewPassword); err != nil {
		return err
	}
	if err := e.commitPassword(ctx, user, req.NewPassword, now, false); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, ActionPasswordChanged, true, user.ID,
		fmt.Sprintf("User changed their password at %s", now.UTC().Format(auditTimeLayout)), nil)
	return nil
}

// PasswordStatus reports how close the user's password is to its maximum age.
func (e *Engine) PasswordStatus(ctx context.Context, userID string) (PasswordStatus, error) {
	if e == nil || e.users == nil {
		return PasswordStatus{}, ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return PasswordStatus{}, ErrInvalidInput
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return PasswordStatus{}, storeErr(err)
	}
	return e.passwordStatus(user, e.now()), nil
}

func (e *Engine) passwordStatus(user *User, now time.Time) PasswordStatus {
	if user.PasswordChangedAt == nil {
		return PasswordStatus{}
	}
	p := e.config.PasswordPolicy
	age := now.Sub(*user.PasswordChangedAt)
	if age >= p.MaxAge {
		return PasswordStatus{
			Known:   true,
			Expired: true,
			Message: "Your password has expired. Please change it now.",
		}
	}

	left := p.MaxAge - age
	status := PasswordStatus{
		Known:           true,
		DaysUntilExpiry: ceilDays(left),
	}
	if left <= p.WarningWindow {
		status.Warning = true
		status.Message = fmt.Sprintf("Your password will expire in %d day(s).", status.DaysUntilExpiry)
	}
	return status
}

func (e *Engine) checkMinimumAge(ctx context.Context, user *User, now time.Time) error {
	minAge := e.config.PasswordPolicy.MinAge
	if user.PasswordChangedAt == nil || minAge <= 0 {
		return nil
	}
	age := now.Sub(*user.PasswordChangedAt)
	if age >= minAge {
		return nil
	}

	wait := minAge - age
	e.metricInc(MetricPasswordChangeTooNew)
	e.emitAudit(ctx, ActionPasswordTooNew, false, user.ID,
		fmt.Sprintf("Password changed %s ago; minimum age not reached", age.Truncate(time.Minute)), nil)
	return &PasswordPolicyError{
		Message: fmt.Sprintf("You cannot change your password yet. Please wait %d more hour(s).", ceilHours(wait)),
		Wait:    wait,
		cause:   ErrPasswordTooNew,
	}
}

func (e *Engine) checkStrength(candidate string) error {
	if err := e.strength.Check(candidate); err != nil {
		return &PasswordPolicyError{Message: err.Error(), cause: ErrWeakPassword}
	}
	return nil
}

// checkReuse compares candidate with the newest HistoryDepth entries using the
// same verifier as login.
func (e *Engine) checkReuse(ctx context.Context, user *User, candidate string) error {
	depth := e.config.PasswordPolicy.HistoryDepth
	entries, err := e.history.RecentPasswordHashes(ctx, user.ID, depth)
	if err != nil {
		return storeErr(err)
	}
	for _, entry := range entries {
		ok, err := e.hasher.Verify(candidate, entry.PasswordHash)
		if err != nil {
			e.logger.Warn("unreadable password history entry", zap.String("user_id", user.ID), zap.Error(err))
			continue
		}
		if ok {
			e.metricInc(MetricPasswordChangeReused)
			e.emitAudit(ctx, ActionPasswordReused, false, user.ID, "New password matches a recent password", nil)
			return &PasswordPolicyError{
				Message: fmt.Sprintf("You cannot reuse any of your last %d passwords.", depth),
				cause:   ErrPasswordReused,
			}
		}
	}
	return nil
}

func (e *Engine) commitPassword(ctx context.Context, user *User, plaintext string, now time.Time, reset bool) error {
	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	err = e.history.CommitPasswordChange(ctx, PasswordChange{
		UserID:           user.ID,
		NewHash:          hash,
		ChangedAt:        now.UTC(),
		KeepHistory:      e.config.PasswordPolicy.HistoryDepth,
		ClearResetExpiry: reset,
	})
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// IsPasswordPolicyError reports whether err is a policy rejection and returns
// its user-facing message.
func IsPasswordPolicyError(err error) (string, bool) {
	var pe *PasswordPolicyError
	if errors.As(err, &pe) {
		return pe.Message, true
	}
	return "", false
}
