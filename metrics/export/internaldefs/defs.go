package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: goGuard.MetricLoginSuccess, Name: "goguard_login_success_total", Help: "Logins that issued a session."},
	{ID: goGuard.MetricLoginFailure, Name: "goguard_login_failure_total", Help: "Logins rejected for bad credentials or input."},
	{ID: goGuard.MetricLoginLockedOut, Name: "goguard_login_locked_out_total", Help: "Logins rejected because the account was locked."},
	{ID: goGuard.MetricLockoutTriggered, Name: "goguard_lockout_triggered_total", Help: "Lockouts started by repeated failures."},
	{ID: goGuard.MetricAccountRecovered, Name: "goguard_account_recovered_total", Help: "Expired lockouts cleared on the next attempt."},
	{ID: goGuard.MetricHumanCheckPassed, Name: "goguard_human_check_passed_total", Help: "Human verification checks that passed."},
	{ID: goGuard.MetricHumanCheckFailed, Name: "goguard_human_check_failed_total", Help: "Human verification checks that failed."},
	{ID: goGuard.MetricHumanCheckSkipped, Name: "goguard_human_check_skipped_total", Help: "Human verification checks skipped because the verifier is unconfigured."},
	{ID: goGuard.MetricTwoFactorRequired, Name: "goguard_two_factor_required_total", Help: "Logins suspended for a second factor."},
	{ID: goGuard.MetricTwoFactorSuccess, Name: "goguard_two_factor_success_total", Help: "Second-factor completions that issued a session."},
	{ID: goGuard.MetricTwoFactorFailure, Name: "goguard_two_factor_failure_total", Help: "Rejected second-factor codes."},
	{ID: goGuard.MetricSessionIssued, Name: "goguard_session_issued_total", Help: "Session tokens written."},
	{ID: goGuard.MetricSessionMismatch, Name: "goguard_session_mismatch_total", Help: "Requests presenting a displaced session token."},
	{ID: goGuard.MetricSessionExpired, Name: "goguard_session_expired_total", Help: "Requests with an expired identity and a lingering session."},
	{ID: goGuard.MetricLogout, Name: "goguard_logout_total", Help: "Logouts."},
	{ID: goGuard.MetricRegisterSuccess, Name: "goguard_register_success_total", Help: "Accounts registered."},
	{ID: goGuard.MetricRegisterDuplicate, Name: "goguard_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: goGuard.MetricPasswordChangeSuccess, Name: "goguard_password_change_success_total", Help: "Successful password changes."},
	{ID: goGuard.MetricPasswordChangeInvalidOld, Name: "goguard_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: goGuard.MetricPasswordChangeTooNew, Name: "goguard_password_change_too_new_total", Help: "Password changes rejected by the minimum age."},
	{ID: goGuard.MetricPasswordChangeReused, Name: "goguard_password_change_reused_total", Help: "Password changes rejected for reuse."},
	{ID: goGuard.MetricPasswordResetRequest, Name: "goguard_password_reset_request_total", Help: "Password reset links sent."},
	{ID: goGuard.MetricPasswordResetSuccess, Name: "goguard_password_reset_success_total", Help: "Completed password resets."},
	{ID: goGuard.MetricPasswordResetFailure, Name: "goguard_password_reset_failure_total", Help: "Rejected password reset confirmations."},
	{ID: goGuard.MetricTwoFactorEnabled, Name: "goguard_two_factor_enabled_total", Help: "Two-factor enrollments."},
	{ID: goGuard.MetricTwoFactorDisabled, Name: "goguard_two_factor_disabled_total", Help: "Two-factor removals."},
	{ID: goGuard.MetricPasswordRehashed, Name: "goguard_password_rehashed_total", Help: "Stored hashes upgraded to the current parameters at login."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricLoginLatency, Name: "goguard_login_latency_seconds", Help: "Login latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine buckets.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
