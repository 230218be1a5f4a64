package goGuard

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/humancheck"
	"github.com/MrEthical07/goGuard/password"
)

// Config is the complete engine configuration. Start from DefaultConfig and
// override fields; the engine keeps its own copy after Build.
type Config struct {
	HumanCheck     humancheck.Config    `toml:"human_check"`
	Lockout        LockoutConfig        `toml:"lockout"`
	Session        SessionConfig        `toml:"session"`
	PasswordPolicy PasswordPolicyConfig `toml:"password_policy"`
	PasswordReset  PasswordResetConfig  `toml:"password_reset"`
	TwoFactor      TwoFactorConfig      `toml:"two_factor"`
	Hashing        HashingConfig        `toml:"hashing"`
	Audit          AuditConfig          `toml:"audit"`
	Metrics        MetricsConfig        `toml:"metrics"`
	Tokens         TokensConfig         `toml:"tokens"`
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls failed-attempt counting. Password and second-factor
// failures share one counter.
type LockoutConfig struct {
	Threshold int           `toml:"threshold"`
	Duration  time.Duration `toml:"duration"`
	// DiscloseRemainingAttempts adds the remaining attempt count to the
	// invalid credentials message of known accounts.
	DiscloseRemainingAttempts bool `toml:"disclose_remaining_attempts"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls identity token lifetimes. The session token itself
// has no lifetime; it lives until displaced or cleared.
type SessionConfig struct {
	IdentityTTL   time.Duration `toml:"identity_ttl"`
	RememberMeTTL time.Duration `toml:"remember_me_ttl"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordPolicyConfig is the password lifecycle policy.
type PasswordPolicyConfig struct {
	MinAge        time.Duration `toml:"min_age"`
	MaxAge        time.Duration `toml:"max_age"`
	WarningWindow time.Duration `toml:"warning_window"`
	HistoryDepth  int           `toml:"history_depth"`
	// EnforceMinAgeOnReset applies MinAge to reset confirmations too. Off by
	// default so a user who forgot a fresh password can still recover.
	EnforceMinAgeOnReset bool            `toml:"enforce_min_age_on_reset"`
	Strength             password.Policy `toml:"strength"`
}

// PasswordResetConfig controls forgot-password links.
type PasswordResetConfig struct {
	TokenTTL time.Duration `toml:"token_ttl"`
	// ResetURL is the page that receives userId and token query parameters.
	ResetURL string `toml:"reset_url"`
}

// HashingConfig holds argon2id cost parameters.
type HashingConfig struct {
	Memory      uint32 `toml:"memory"`
	Time        uint32 `toml:"time"`
	Parallelism uint8  `toml:"parallelism"`
	SaltLength  uint32 `toml:"salt_length"`
	KeyLength   uint32 `toml:"key_length"`
}

/*
====================================
TWO FACTOR CONFIG
====================================
*/

// TwoFactorConfig controls TOTP enrollment and pending logins.
type TwoFactorConfig struct {
	Issuer          string        `toml:"issuer"`
	Digits          int           `toml:"digits"`
	Period          uint          `toml:"period"`
	Skew            uint          `toml:"skew"`
	ContinuationTTL time.Duration `toml:"continuation_ttl"`
	RedisPrefix     string        `toml:"redis_prefix"`
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled bool `toml:"enabled"`
	// Synchronous delivers events on the calling goroutine.
	Synchronous  bool `toml:"synchronous"`
	BufferSize   int  `toml:"buffer_size"`
	DropIfFull   bool `toml:"drop_if_full"`
	HistoryLimit int  `toml:"history_limit"`
}

// MetricsConfig toggles in-process counters and the login latency histogram.
type MetricsConfig struct {
	Enabled                 bool `toml:"enabled"`
	EnableLatencyHistograms bool `toml:"enable_latency_histograms"`
}

/*
====================================
TOKENS CONFIG
====================================
*/

// TokensConfig configures signing for identity and reset tokens. Secret is
// used with hs256; PrivateKey and PublicKey hold PEM or raw ed25519 keys.
type TokensConfig struct {
	SigningMethod string        `toml:"signing_method"`
	Secret        string        `toml:"secret"`
	PrivateKey    string        `toml:"private_key"`
	PublicKey     string        `toml:"public_key"`
	Issuer        string        `toml:"issuer"`
	Audience      string        `toml:"audience"`
	Leeway        time.Duration `toml:"leeway"`
}

// DefaultConfig returns the reference policy: 3 attempts then a 15 minute
// lockout, one day minimum and 90 day maximum password age with a 14 day
// warning, and the last 2 passwords blocked from reuse.
func DefaultConfig() Config {
	return Config{
		HumanCheck: humancheck.DefaultConfig(),
		Lockout: LockoutConfig{
			Threshold:                 3,
			Duration:                  15 * time.Minute,
			DiscloseRemainingAttempts: true,
		},
		Session: SessionConfig{
			IdentityTTL:   8 * time.Hour,
			RememberMeTTL: 14 * 24 * time.Hour,
		},
		PasswordPolicy: PasswordPolicyConfig{
			MinAge:        24 * time.Hour,
			MaxAge:        90 * 24 * time.Hour,
			WarningWindow: 14 * 24 * time.Hour,
			HistoryDepth:  2,
			Strength:      password.StrongPolicy(),
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL: time.Hour,
			ResetURL: "http://localhost:8080/reset-password",
		},
		TwoFactor: TwoFactorConfig{
			Issuer:          "goGuard",
			Digits:          6,
			Period:          30,
			Skew:            1,
			ContinuationTTL: 5 * time.Minute,
			RedisPrefix:     "g2fa",
		},
		Hashing: HashingConfig(password.DefaultConfig()),
		Audit: AuditConfig{
			Enabled:      true,
			BufferSize:   1024,
			DropIfFull:   true,
			HistoryLimit: 50,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Tokens: TokensConfig{
			SigningMethod: "hs256",
			Issuer:        "goguard",
		},
	}
}

// Validate rejects incoherent configurations. Build calls it.
func (c *Config) Validate() error {
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	if c.Session.IdentityTTL <= 0 {
		return errors.New("Session IdentityTTL must be > 0")
	}
	if c.Session.RememberMeTTL < c.Session.IdentityTTL {
		return errors.New("Session RememberMeTTL must be >= IdentityTTL")
	}

	p := c.PasswordPolicy
	if p.MinAge < 0 {
		return errors.New("PasswordPolicy MinAge must be >= 0")
	}
	if p.MaxAge <= 0 {
		return errors.New("PasswordPolicy MaxAge must be > 0")
	}
	if p.MinAge >= p.MaxAge {
		return errors.New("PasswordPolicy MinAge must be < MaxAge")
	}
	if p.WarningWindow < 0 || p.WarningWindow >= p.MaxAge {
		return errors.New("PasswordPolicy WarningWindow must be >= 0 and < MaxAge")
	}
	if p.HistoryDepth < 1 {
		return errors.New("PasswordPolicy HistoryDepth must be >= 1")
	}
	if p.Strength.MinLength < 1 {
		return errors.New("PasswordPolicy Strength MinLength must be >= 1")
	}

	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}
	if strings.TrimSpace(c.PasswordReset.ResetURL) == "" {
		return errors.New("PasswordReset ResetURL is required")
	}

	t := c.TwoFactor
	if strings.TrimSpace(t.Issuer) == "" {
		return errors.New("TwoFactor Issuer is required")
	}
	if t.Digits != 6 && t.Digits != 8 {
		return errors.New("TwoFactor Digits must be 6 or 8")
	}
	if t.Period < 15 {
		return errors.New("TwoFactor Period must be >= 15 seconds")
	}
	if t.Skew > 2 {
		return errors.New("TwoFactor Skew must be <= 2")
	}
	if t.ContinuationTTL <= 0 || t.ContinuationTTL > 15*time.Minute {
		return errors.New("TwoFactor ContinuationTTL must be in (0, 15m]")
	}

	if _, err := password.NewArgon2(password.Config(c.Hashing)); err != nil {
		return err
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 && !c.Audit.Synchronous {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Audit.HistoryLimit <= 0 {
		return errors.New("Audit HistoryLimit must be > 0")
	}

	switch strings.ToLower(c.Tokens.SigningMethod) {
	case "hs256":
		if len(c.Tokens.Secret) < 32 {
			return errors.New("Tokens Secret must be at least 32 bytes for hs256")
		}
	case "ed25519":
		if c.Tokens.PrivateKey == "" || c.Tokens.PublicKey == "" {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported Tokens SigningMethod")
	}
	if c.Tokens.Leeway < 0 || c.Tokens.Leeway > 2*time.Minute {
		return errors.New("Tokens Leeway must be in [0, 2m]")
	}

	return nil
}
