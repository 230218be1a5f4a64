package goGuard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// User is the credential record owned by a CredentialStore.
//
// SessionToken is the single active session for the user; nil means signed
// out. Writing a new token invalidates whatever was there before.
type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	FailedCount         int
	LockoutEnd          *time.Time
	TwoFactorEnabled    bool
	TwoFactorSecret     string
	SessionToken        *string
	PasswordChangedAt   *time.Time
	PasswordResetExpiry *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time
}

// IsLockedOut reports whether a lockout is in force at now.
func (u *User) IsLockedOut(now time.Time) bool {
	return u != nil && u.LockoutEnd != nil && u.LockoutEnd.After(now)
}

// LockoutExpired reports whether a lockout is recorded but has lapsed. Such
// accounts are recovered on their next login attempt.
func (u *User) LockoutExpired(now time.Time) bool {
	return u != nil && u.LockoutEnd != nil && !u.LockoutEnd.After(now)
}

// NewUser is the input to CredentialStore.CreateUser.
type NewUser struct {
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// PasswordHistoryEntry is one previously used password hash.
type PasswordHistoryEntry struct {
	UserID       string
	PasswordHash string
	CreatedAt    time.Time
}

// PasswordChange is the compound write committed after an accepted password
// change or reset. Stores apply it atomically: update the user's hash and
// PasswordChangedAt, insert a history entry, then trim history to the
// KeepHistory newest entries.
type PasswordChange struct {
	UserID           string
	NewHash          string
	ChangedAt        time.Time
	KeepHistory      int
	ClearResetExpiry bool
}

// CredentialStore holds user records. Field setters are individually atomic
// so concurrent requests for one user never clobber unrelated fields.
//
// Lookups return ErrUserNotFound for unknown users. Other failures should wrap
// ErrStoreUnavailable or be returned as is; the engine wraps them.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	// CreateUser inserts the user with PasswordChangedAt = CreatedAt and its
	// first history entry together. It returns ErrEmailTaken on a duplicate
	// email.
	CreateUser(ctx context.Context, user NewUser) (*User, error)
	// IncrementFailedCount adds one and returns the new value.
	IncrementFailedCount(ctx context.Context, userID string) (int, error)
	ResetFailedCount(ctx context.Context, userID string) error
	SetLockoutEnd(ctx context.Context, userID string, end *time.Time) error
	// SetSessionToken overwrites the current session token and last login time
	// in one write.
	SetSessionToken(ctx context.Context, userID, token string, loginAt time.Time) error
	ClearSessionToken(ctx context.Context, userID string) error
	SetPasswordResetExpiry(ctx context.Context, userID string, expiry *time.Time) error
	SetTwoFactor(ctx context.Context, userID string, enabled bool, secret string) error
	// SetPasswordHash swaps the stored hash for a re-encoding of the same
	// password. PasswordChangedAt and history are left alone.
	SetPasswordHash(ctx context.Context, userID, hash string) error
}

// PasswordHistoryStore is the per-user ledger of previous password hashes.
type PasswordHistoryStore interface {
	// RecentPasswordHashes returns up to limit entries, newest first.
	RecentPasswordHashes(ctx context.Context, userID string, limit int) ([]PasswordHistoryEntry, error)
	CommitPasswordChange(ctx context.Context, change PasswordChange) error
}

// AuditStore persists and reads the audit trail.
type AuditStore interface {
	AppendAudit(ctx context.Context, event AuditEvent) error
	// ListAuditByUser returns up to limit events for userID, newest first.
	ListAuditByUser(ctx context.Context, userID string, limit int) ([]AuditEvent, error)
}

// Mailer delivers password reset links. goGuard builds the link; the mailer
// formats and sends the message.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, address, link string) error
}

// PasswordHasher hashes and verifies passwords. password.Argon2 is the default.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) (bool, error)
}

// HashUpgrader is implemented by hashers that can tell when a stored hash
// was made with weaker parameters than the current ones. Login rehashes such
// passwords after a successful check.
type HashUpgrader interface {
	NeedsUpgrade(encoded string) (bool, error)
}

// LoginRequest is one login attempt. Client IP and user agent travel in the
// context (WithClientIP, WithUserAgent).
type LoginRequest struct {
	Email      string
	Password   string
	HumanToken string
	RememberMe bool
}

// LoginState is the non-failure state a login attempt stopped in.
type LoginState uint8

const (
	// StateSessionIssued means a session token was written and returned.
	StateSessionIssued LoginState = iota + 1
	// StateTwoFactorPending means the password was accepted and the attempt is
	// suspended until CompleteTwoFactor is called with the continuation.
	StateTwoFactorPending
)

func (s LoginState) String() string {
	switch s {
	case StateSessionIssued:
		return "session_issued"
	case StateTwoFactorPending:
		return "two_factor_pending"
	default:
		return "unknown"
	}
}

// LoginResult is the successful outcome of Login or CompleteTwoFactor.
type LoginResult struct {
	State        LoginState
	UserID       string
	SessionToken string
	Continuation string
	RememberMe   bool
	// Score is the human check trust score of the attempt, nil when the check
	// was skipped or returned no score.
	Score             *float64
	HumanCheckSkipped bool
	Password          PasswordStatus
}

// FailureKind identifies which stage rejected a login attempt.
type FailureKind uint8

const (
	FailureInvalidInput FailureKind = iota + 1
	FailureHumanCheck
	FailureInvalidCredentials
	FailureLockedOut
	FailureLockoutTriggered
	FailureInvalidCode
	FailureContinuationExpired
	FailureUnavailable
)

func (k FailureKind) String() string {
	switch k {
	case FailureInvalidInput:
		return "invalid_input"
	case FailureHumanCheck:
		return "human_check"
	case FailureInvalidCredentials:
		return "invalid_credentials"
	case FailureLockedOut:
		return "locked_out"
	case FailureLockoutTriggered:
		return "lockout_triggered"
	case FailureInvalidCode:
		return "invalid_code"
	case FailureContinuationExpired:
		return "continuation_expired"
	case FailureUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// LoginError is a rejected login attempt. Message is safe to show to the
// client. It unwraps to one of the package sentinels so errors.Is works.
type LoginError struct {
	Kind    FailureKind
	Message string
	// RemainingAttempts is set for FailureInvalidCredentials and
	// FailureInvalidCode on known accounts.
	RemainingAttempts int
	// LockedFor is the remaining lockout for FailureLockedOut and
	// FailureLockoutTriggered.
	LockedFor      time.Duration
	Score          *float64
	HumanCheckCode string

	cause error
}

func (e *LoginError) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%v: %s", e.cause, e.Message)
}

func (e *LoginError) Unwrap() error { return e.cause }

// TwoFactorOutcome is the three-way result of CompleteTwoFactor.
type TwoFactorOutcome uint8

const (
	TwoFactorSuccess TwoFactorOutcome = iota + 1
	TwoFactorLockedOut
	TwoFactorInvalidCode
)

// ClassifyTwoFactor maps the error returned by CompleteTwoFactor onto the
// success / lockedOut / invalidCode contract. Infrastructure failures and
// expired continuations classify as TwoFactorInvalidCode.
func ClassifyTwoFactor(err error) TwoFactorOutcome {
	if err == nil {
		return TwoFactorSuccess
	}
	if errors.Is(err, ErrAccountLocked) {
		return TwoFactorLockedOut
	}
	return TwoFactorInvalidCode
}

// PasswordStatus is the maximum-age advisory for a user's password.
type PasswordStatus struct {
	// Known is false when no change timestamp is recorded.
	Known           bool
	Expired         bool
	Warning         bool
	DaysUntilExpiry int
	Message         string
}

// PasswordPolicyError is a rejected password change or reset.
type PasswordPolicyError struct {
	Message string
	// Wait is the remaining minimum age for ErrPasswordTooNew.
	Wait  time.Duration
	cause error
}

func (e *PasswordPolicyError) Error() string { return e.Message }

func (e *PasswordPolicyError) Unwrap() error { return e.cause }

// ChangePasswordRequest changes a signed-in user's password.
type ChangePasswordRequest struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Email      string
	Password   string
	HumanToken string
}

// TwoFactorSetup is returned by BeginTwoFactorSetup for enrollment in an
// authenticator app.
type TwoFactorSetup struct {
	Secret string
	URL    string
}

func ceilMinutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}

func ceilHours(d time.Duration) int {
	return int(math.Ceil(d.Hours()))
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}
