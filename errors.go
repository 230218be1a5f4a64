package goGuard

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goGuard/password"
)

var (
	// ErrEngineNotReady is returned when a required collaborator was not configured.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidInput is returned for missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrHumanCheckFailed is returned when the human verification gate rejects a request.
	ErrHumanCheckFailed = errors.New("human verification failed")
	// ErrInvalidCredentials covers both unknown accounts and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while an account lockout is in force.
	ErrAccountLocked = errors.New("account locked")
	// ErrUserNotFound is returned by stores for unknown ids or emails.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned by registration for an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrStoreUnavailable wraps persistence failures.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrTwoFactorInvalidCode is returned for a wrong second-factor code.
	ErrTwoFactorInvalidCode = errors.New("invalid two-factor code")
	// ErrTwoFactorExpired is returned for an unknown, used or expired continuation.
	ErrTwoFactorExpired = errors.New("two-factor login expired")
	// ErrTwoFactorNotEnabled is returned when disabling 2FA that is not on.
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication not enabled")
	// ErrTwoFactorAlreadyEnabled is returned when starting setup while 2FA is on.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	// ErrTwoFactorSetupMissing is returned when enabling 2FA before setup.
	ErrTwoFactorSetupMissing = errors.New("two-factor setup not started")

	// ErrPasswordTooNew is returned when the minimum password age has not elapsed.
	ErrPasswordTooNew = errors.New("password changed too recently")
	// ErrPasswordReused is returned when a new password matches recent history.
	ErrPasswordReused = errors.New("password reused")
	// ErrWeakPassword is returned when a new password fails the composition policy.
	ErrWeakPassword = password.ErrWeakPassword
	// ErrPasswordResetInvalid is returned for a bad or foreign reset token.
	ErrPasswordResetInvalid = errors.New("invalid password reset token")
	// ErrPasswordResetExpired is returned when no reset is outstanding or it lapsed.
	ErrPasswordResetExpired = errors.New("password reset expired")
)

// storeErr passes through sentinels stores are expected to return and wraps
// everything else as ErrStoreUnavailable.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
