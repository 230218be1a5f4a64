package goGuard

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrEthical07/goGuard/humancheck"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Audit action labels. They are stored verbatim and shown to users in their
// activity history, so they stay human readable.
const (
	ActionLoginFailedHumanCheck  = "Login Failed - Human Check"
	ActionLoginFailedUnknown     = "Login Failed - Unknown Account"
	ActionLoginFailedLocked      = "Login Failed - Account Locked"
	ActionAccountRecovered       = "Account Recovered"
	ActionAccountLocked          = "Account Locked"
	ActionLoginFailed            = "Login Failed"
	ActionLoginUnavailable       = "Login Failed - Service Unavailable"
	ActionLoginSuccess           = "Login Success"
	ActionTwoFactorRequired      = "Login - 2FA Required"
	ActionTwoFactorSuccess       = "Login - 2FA Success"
	ActionTwoFactorFailed        = "Login - 2FA Failed"
	ActionTwoFactorLockout       = "Login - 2FA Lockout"
	ActionTwoFactorLocked        = "Login - 2FA Rejected - Account Locked"
	ActionTwoFactorExpired       = "Login - 2FA Expired"
	ActionSessionRevoked         = "Session Revoked - Concurrent Login"
	ActionSessionExpired         = "Session Expired - Unauthorized Access"
	ActionLogout                 = "Logout"
	ActionPasswordChanged        = "Password Changed"
	ActionPasswordTooNew         = "Password Change Rejected - Minimum Age"
	ActionPasswordWrongCurrent   = "Password Change Rejected - Invalid Current Password"
	ActionPasswordReused         = "Password Change Rejected - Reuse"
	ActionPasswordResetRequested = "Password Reset Requested"
	ActionPasswordReset          = "Password Reset"
	ActionTwoFactorEnabled       = "2FA Enabled"
	ActionTwoFactorDisabled      = "2FA Disabled"
	ActionRegistrationSuccess    = "Registration Success"
	ActionDuplicateRegistration  = "Security Alert: Duplicate Registration Attempt"
	ActionRegistrationHumanCheck = "Security Alert: Human Check Failed"
)

const (
	humanCheckLogin    = "login"
	humanCheckRegister = "register"
)

func (e *Engine) emitAudit(ctx context.Context, action string, success bool, userID, detail string, score *float64) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: e.now().UTC(),
		Action:    action,
		Success:   success,
		UserID:    userID,
		Detail:    detail,
		Score:     score,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	})
}

// humanCheckAudit mirrors every verifier call into the audit trail.
type humanCheckAudit struct {
	engine *Engine
}

func (h humanCheckAudit) RecordHumanCheck(ctx context.Context, action, subjectHint string, result humancheck.Result) {
	e := h.engine
	label := "Human Check Verified - "
	switch {
	case result.Skipped:
		label = "Human Check Skipped - "
		e.metricInc(MetricHumanCheckSkipped)
	case !result.Valid:
		label = "Human Check Failed - "
		e.metricInc(MetricHumanCheckFailed)
	default:
		e.metricInc(MetricHumanCheckPassed)
	}

	code := result.ErrorCode
	if code == "" {
		code = "SUCCESS"
	}
	detail := fmt.Sprintf("Score: %.2f, ErrorCode: %s", result.Score, code)
	e.emitAudit(ctx, label+strings.ToUpper(action), result.Valid, "", detail, result.ScorePtr())

	if !result.Valid {
		e.logger.Info("human check rejected",
			zap.String("action", action),
			zap.String("code", result.ErrorCode),
			zap.Bool("has_subject", subjectHint != ""),
		)
	}
}

// RecordSessionExpired audits a request that arrived with a session cookie but
// no valid identity. path is the requested resource.
func (e *Engine) RecordSessionExpired(ctx context.Context, path string) {
	if e == nil {
		return
	}
	e.metricInc(MetricSessionExpired)
	e.emitAudit(ctx, ActionSessionExpired, false, "", "Session expired while accessing "+path, nil)
}

// AuditHistory returns up to limit of the user's audit events, newest first.
// limit <= 0 or above the configured HistoryLimit uses HistoryLimit.
func (e *Engine) AuditHistory(ctx context.Context, userID string, limit int) ([]AuditEvent, error) {
	if e == nil || e.auditLog == nil {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	max := e.config.Audit.HistoryLimit
	if limit <= 0 || limit > max {
		limit = max
	}
	events, err := e.auditLog.ListAuditByUser(ctx, userID, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return events, nil
}
