package goGuard

import (
	"context"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func (e *Engine) totpOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    e.config.TwoFactor.Period,
		Skew:      e.config.TwoFactor.Skew,
		Digits:    otp.Digits(e.config.TwoFactor.Digits),
		Algorithm: otp.AlgorithmSHA1,
	}
}

// validateTOTP accepts codes within Skew periods of the engine clock.
func (e *Engine) validateTOTP(secret, code string) bool {
	ok, err := totp.ValidateCustom(code, secret, e.now().UTC(), e.totpOpts())
	return err == nil && ok
}

// GenerateTOTPCode returns the code for secret at t using the engine's TOTP
// parameters. Useful for provisioning checks and tests.
func (e *Engine) GenerateTOTPCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), e.totpOpts())
}

// BeginTwoFactorSetup creates a new authenticator secret for the user and
// stores it disabled. It replaces any earlier unfinished setup.
func (e *Engine) BeginTwoFactorSetup(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.config.TwoFactor.Issuer,
		AccountName: user.Email,
		Period:      e.config.TwoFactor.Period,
		Digits:      otp.Digits(e.config.TwoFactor.Digits),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}
	if err := e.users.SetTwoFactor(ctx, user.ID, false, key.Secret()); err != nil {
		return nil, storeErr(err)
	}
	return &TwoFactorSetup{Secret: key.Secret(), URL: key.URL()}, nil
}

// EnableTwoFactor turns on 2FA once the user proves the authenticator app
// produces valid codes for the pending secret.
func (e *Engine) EnableTwoFactor(ctx context.Context, userID, code string) error {
	user, code, err := e.twoFactorSubject(ctx, userID, code)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return ErrTwoFactorAlreadyEnabled
	}
	if user.TwoFactorSecret == "" {
		return ErrTwoFactorSetupMissing
	}
	if !e.validateTOTP(user.TwoFactorSecret, code) {
		return ErrTwoFactorInvalidCode
	}
	if err := e.users.SetTwoFactor(ctx, user.ID, true, user.TwoFactorSecret); err != nil {
		return storeErr(err)
	}
	e.metricInc(MetricTwoFactorEnabled)
	e.emitAudit(ctx, ActionTwoFactorEnabled, true, user.ID, "Two-factor authentication enabled", nil)
	return nil
}

// DisableTwoFactor turns off 2FA and discards the secret. A current code is
// required.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID, code string) error {
	user, code, err := e.twoFactorSubject(ctx, userID, code)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}
	if !e.validateTOTP(user.TwoFactorSecret, code) {
		return ErrTwoFactorInvalidCode
	}
	if err := e.users.SetTwoFactor(ctx, user.ID, false, ""); err != nil {
		return storeErr(err)
	}
	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, ActionTwoFactorDisabled, true, user.ID, "Two-factor authentication disabled", nil)
	return nil
}

func (e *Engine) twoFactorSubject(ctx context.Context, userID, code string) (*User, string, error) {
	if e == nil || e.users == nil {
		return nil, "", ErrEngineNotReady
	}
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	if strings.TrimSpace(userID) == "" || code == "" {
		return nil, "", ErrInvalidInput
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return nil, "", storeErr(err)
	}
	return user, code, nil
}
