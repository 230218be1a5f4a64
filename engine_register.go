package goGuard

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"go.uber.org/zap"
)

// Register creates an account and signs it in. The human check runs before
// the duplicate-email lookup so the lookup cannot be scripted.
//
// Errors: ErrInvalidInput, a *LoginError of kind FailureHumanCheck, a
// *PasswordPolicyError for a weak password, ErrEmailTaken.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, ErrInvalidInput
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidInput
	}

	hc := e.human.Verify(ctx, req.HumanToken, humanCheckRegister, email)
	score := hc.ScorePtr()
	if !hc.Valid {
		e.emitAudit(ctx, ActionRegistrationHumanCheck, false, "",
			"Human verification failed during registration: "+hc.ErrorCode, score)
		return nil, &LoginError{
			Kind:           FailureHumanCheck,
			Message:        humanCheckMessage(hc),
			Score:          score,
			HumanCheckCode: hc.ErrorCode,
			cause:          ErrHumanCheckFailed,
		}
	}

	if err := e.checkStrength(req.Password); err != nil {
		return nil, err
	}

	_, err := e.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, e.duplicateRegistration(ctx, score)
	case !errors.Is(err, ErrUserNotFound):
		return nil, storeErr(err)
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	user, err := e.users.CreateUser(ctx, NewUser{Email: email, PasswordHash: hash, CreatedAt: now})
	if errors.Is(err, ErrEmailTaken) {
		// lost a race with a concurrent registration
		return nil, e.duplicateRegistration(ctx, score)
	}
	if err != nil {
		return nil, storeErr(err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, ActionRegistrationSuccess, true, user.ID,
		fmt.Sprintf("New account registered at %s", now.Format(auditTimeLayout)), score)
	e.logger.Info("account registered", zap.String("user_id", user.ID))

	token, err := e.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		State:             StateSessionIssued,
		UserID:            user.ID,
		SessionToken:      token,
		Score:             score,
		HumanCheckSkipped: hc.Skipped,
		Password:          e.passwordStatus(user, now),
	}, nil
}

func (e *Engine) duplicateRegistration(ctx context.Context, score *float64) error {
	e.metricInc(MetricRegisterDuplicate)
	e.emitAudit(ctx, ActionDuplicateRegistration, false, "",
		"Blocked registration for an email that is already registered", score)
	return ErrEmailTaken
}
